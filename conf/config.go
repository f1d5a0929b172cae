package conf

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 配置加载（数据库、缓存、回测参数等）

type Db struct {
	DbName   string `yaml:"dbname"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

// RedisConfig is used to configure redis
type RedisConfig struct {
	Addr         string `yaml:"address"`
	Password     string `yaml:"password"`
	Db           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool-size"`
	MinIdleConns int    `yaml:"min-idle-conns"`
	IdleTimeout  int    `yaml:"idle-timeout"`
	BarTTL       int    `yaml:"bar-ttl"` // 行情缓存过期时间（秒）
}

type KafkaConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

type EmailConfig struct {
	Host     string   `yaml:"smtp_host"`
	Port     int      `yaml:"smtp_port"`
	Username string   `yaml:"smtp_user"`
	Password string   `yaml:"smtp_password"`
	Sender   string   `yaml:"smtp_sender"`
	To       []string `yaml:"to"`
}

// TelegramConfig bot token 和 chat id 都配置时推送运行报告
type TelegramConfig struct {
	BotToken string `yaml:"bot-token"`
	ChatID   string `yaml:"chat-id"`
}

// BacktestConfig 回测运行参数
type BacktestConfig struct {
	DataDir      string            `yaml:"data-dir"`      // OHLCV csv 目录，每个标的一个文件
	UniverseFile string            `yaml:"universe-file"` // 标的及行业列表
	Workers      int               `yaml:"workers"`       // 并发模拟的标的数
	Strategies   map[string]string `yaml:"strategies"`    // "swing_v1" -> 策略文件路径
	RecordFile   string            `yaml:"record-file"`   // 运行结果 JSON 行文件
	FetchTimeout time.Duration     `yaml:"fetch-timeout"` // 单个标的行情加载超时
}

// TechnicalParams 技术指标周期
type TechnicalParams struct {
	EMAShort       int `yaml:"ema-short"`
	EMAMedium      int `yaml:"ema-medium"`
	SMALong        int `yaml:"sma-long"`
	RSIPeriod      int `yaml:"rsi-period"`
	MACDFast       int `yaml:"macd-fast"`
	MACDSlow       int `yaml:"macd-slow"`
	MACDSignal     int `yaml:"macd-signal"`
	ATRPeriod      int `yaml:"atr-period"`
	VolumeLookback int `yaml:"volume-lookback"`
	RangeLookback  int `yaml:"range-lookback"` // 52 周高低点窗口（交易日）
}

type MetricsConfig struct {
	PeriodsPerYear float64 `yaml:"periods-per-year"` // 年化因子使用的交易日数
}

type ScheduleConfig struct {
	Cron          string   `yaml:"cron"`
	StrategyTypes []string `yaml:"strategy-types"`
	LookbackDays  int      `yaml:"lookback-days"` // 每次回放的自然日窗口
}

type Config struct {
	AppName      string `yaml:"app_name"`
	Listen       string `yaml:"listen"`
	Mode         string `yaml:"mode"`
	Language     string `yaml:"language"`       // 参数校验提示语言
	MaxPingCount int    `yaml:"max-ping-count"` // 启动自检最多等待秒数

	Db        `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Email     EmailConfig     `yaml:"email"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Technical TechnicalParams `yaml:"technical"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

var AppConfig Config

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Read config file error %w", err)
	}
	if err := yaml.Unmarshal(data, &AppConfig); err != nil {
		return fmt.Errorf("Unmarshal config yaml error: %w", err)
	}
	AppConfig.applyEnv()
	return nil
}

// applyEnv 环境变量优先于配置文件中的连接信息
func (c *Config) applyEnv() {
	if v := os.Getenv("DB_USER"); v != "" {
		c.Db.Username = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Db.Password = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Db.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		c.Db.Port = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Db.DbName = v
	}
	redisHost := os.Getenv("REDIS_HOST")
	redisPort := os.Getenv("REDIS_PORT")
	if redisHost != "" && redisPort != "" {
		c.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
}
