// Package syncer 实现账户指标同步的编排逻辑
package syncer

import (
	"fmt"
	"time"

	"github.com/hostpulse/airbnb-sync/internal/config"
)

// Window 同步日期窗口, 始端对齐周日, 末端对齐周六, 均为闭区间
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// PlanWindow 计算同步窗口 (纯函数, 不读时钟)
//
// 首次同步: start = 本周周日 − LookbackWeeks 周, 不得早于
// today − MaxLookbackDays (上游硬限制); 触碰限制时取
// today − MaxLookbackDays 向后对齐到周日。
// 增量同步: start = 本周周日 − 1 周 (重拉最近一个完整周, 吸收迟到更新)。
// 两种情况 end = 本周周日 + LookaheadWeeks 周 + 6 天 (周六, 覆盖未来预订)。
func PlanWindow(isFirstRun bool, today time.Time, cfg config.SyncConfig) Window {
	day := truncateToDay(today)
	currentSunday := weekStart(day)

	var start time.Time
	if isFirstRun {
		start = currentSunday.AddDate(0, 0, -7*cfg.LookbackWeeks)
		floor := day.AddDate(0, 0, -cfg.MaxLookbackDays)
		if start.Before(floor) {
			// 向后对齐, 绝不请求上游会拒绝的日期
			start = alignForwardToSunday(floor)
		}
	} else {
		start = currentSunday.AddDate(0, 0, -7)
	}

	end := currentSunday.AddDate(0, 0, 7*cfg.LookaheadWeeks+6)

	return Window{Start: start, End: end}
}

// ChunkWindows 将窗口切分为固定天数的子窗口, 末块截断到窗口终点
func ChunkWindows(w Window, days int) []Window {
	if days <= 0 || w.End.Before(w.Start) {
		return nil
	}

	var chunks []Window
	current := w.Start
	for !current.After(w.End) {
		chunkEnd := current.AddDate(0, 0, days-1)
		if chunkEnd.After(w.End) {
			chunkEnd = w.End
		}
		chunks = append(chunks, Window{Start: current, End: chunkEnd})
		current = chunkEnd.AddDate(0, 0, 1)
	}
	return chunks
}

// weekStart 所在周的周日
func weekStart(day time.Time) time.Time {
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// alignForwardToSunday 向后 (未来方向) 对齐到最近的周日
func alignForwardToSunday(day time.Time) time.Time {
	offset := (7 - int(day.Weekday())) % 7
	return day.AddDate(0, 0, offset)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
