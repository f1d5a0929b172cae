package compare

import (
	"math"

	"backflow/internal/model"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	testWelch  = "welch_t_test"
	testChiSq  = "chi_square_test"
	minSamples = 2
)

// WelchTTest 双侧 Welch t 检验，比较两组收益均值
func WelchTTest(x, y []float64) (float64, error) {
	if len(x) < minSamples || len(y) < minSamples {
		return 0, &model.StatisticalTestError{Test: testWelch, Reason: "fewer than 2 trades on a side"}
	}
	mx, vx := stat.MeanVariance(x, nil)
	my, vy := stat.MeanVariance(y, nil)
	nx, ny := float64(len(x)), float64(len(y))

	sx, sy := vx/nx, vy/ny
	se2 := sx + sy
	if se2 == 0 {
		return 0, &model.StatisticalTestError{Test: testWelch, Reason: "zero variance in both samples"}
	}
	t := (my - mx) / math.Sqrt(se2)
	df := se2 * se2 / (sx*sx/(nx-1) + sy*sy/(ny-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return clampP(2 * dist.Survival(math.Abs(t))), nil
}

// ChiSquareWinRate 2x2 盈利/非盈利列联表的 Pearson 卡方检验（Yates 连续性校正）。
// 任一行或列合计为 0 时无法区分，p = 1。
func ChiSquareWinRate(wins1, n1, wins2, n2 int) (float64, error) {
	if n1 < minSamples || n2 < minSamples {
		return 0, &model.StatisticalTestError{Test: testChiSq, Reason: "fewer than 2 trades on a side"}
	}
	a, b := float64(wins1), float64(n1-wins1)
	c, d := float64(wins2), float64(n2-wins2)
	r1, r2 := a+b, c+d
	c1, c2 := a+c, b+d
	if r1 == 0 || r2 == 0 || c1 == 0 || c2 == 0 {
		return 1, nil
	}
	n := r1 + r2
	diff := math.Max(0, math.Abs(a*d-b*c)-n/2)
	chi2 := n * diff * diff / (r1 * r2 * c1 * c2)

	dist := distuv.ChiSquared{K: 1}
	return clampP(dist.Survival(chi2)), nil
}

func clampP(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
