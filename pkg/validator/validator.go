package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once     sync.Once
	validate *validator.Validate
	trans    ut.Translator
	ginTrans ut.Translator
)

// Default 返回带英文翻译的全局校验器，字段名取 yaml/json/form 标签
func Default() (*validator.Validate, ut.Translator) {
	once.Do(func() {
		validate = validator.New()
		trans = setup(validate)
	})
	return validate, trans
}

func setup(v *validator.Validate) ut.Translator {
	v.RegisterTagNameFunc(tagName)
	locale := en.New()
	uni := ut.New(locale, locale)
	t, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, t)
	return t
}

func tagName(fld reflect.StructField) string {
	for _, key := range []string{"yaml", "json", "form"} {
		name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// Struct 校验结构体，返回翻译后的错误列表，无错误时返回 nil
func Struct(s any) []string {
	v, t := Default()
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	return Translate(err, t)
}

func Translate(err error, t ut.Translator) []string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		// Namespace 形如 Config.rules.rsi_band.rsi_min，去掉根类型名
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		msg := fe.Translate(t)
		out = append(out, ns+": "+msg)
	}
	return out
}

// LazyInitGinValidator 让 gin 的参数绑定使用同样的字段命名和英文翻译
func LazyInitGinValidator(language string) {
	if language != "" && language != "en" {
		return
	}
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		ginTrans = setup(v)
	}
}

// BindError 翻译 gin 绑定阶段产生的校验错误
func BindError(err error) string {
	if ginTrans == nil {
		return err.Error()
	}
	return strings.Join(Translate(err, ginTrans), "; ")
}
