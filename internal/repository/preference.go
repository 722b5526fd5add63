// Package repository 提供数据访问层
package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kinmu/kinmu/internal/database"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
)

// 标记取值
const (
	MarkUnlisted int16 = 0
	MarkListed   int16 = 1
)

// PreferenceMark 偏好表中的一格
type PreferenceMark struct {
	Day      time.Time      `json:"day" db:"day"`
	Employee model.Employee `json:"employee" db:"employee"`
	Mark     int16          `json:"mark" db:"mark"`
}

// PreferenceRepository 偏好表仓储
type PreferenceRepository struct {
	db *database.DB
}

// NewPreferenceRepository 创建偏好表仓储
func NewPreferenceRepository(db *database.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

const upsertMark = `
	INSERT INTO preference_marks (day, employee, mark, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (day, employee) DO UPDATE SET mark = EXCLUDED.mark, updated_at = now()`

// Upsert 写入某员工某月的偏好
//
// 非反选时列出的日期记为 1；反选时列出的日期记为 0，当月其余日期记为 1。
func (r *PreferenceRepository) Upsert(ctx context.Context, employee model.Employee, month model.MonthRef, days []model.Day, inverted bool) error {
	if employee == "" {
		return errors.InvalidInput("employee", "员工标识不能为空")
	}
	n := daysIn(month)
	listed := make(map[model.Day]bool, len(days))
	for _, d := range days {
		if d < 1 || d > n {
			return errors.InvalidInput("days", fmt.Sprintf("日期 %d 超出范围 1..%d", d, n))
		}
		listed[d] = true
	}

	marks := make(map[model.Day]int16, n)
	if inverted {
		for d := 1; d <= n; d++ {
			marks[d] = MarkListed
		}
		for d := range listed {
			marks[d] = MarkUnlisted
		}
	} else {
		for d := range listed {
			marks[d] = MarkListed
		}
	}

	ordered := make([]model.Day, 0, len(marks))
	for d := range marks {
		ordered = append(ordered, d)
	}
	sort.Ints(ordered)

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, d := range ordered {
			if _, err := tx.ExecContext(ctx, upsertMark, month.Date(d), string(employee), marks[d]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "写入偏好失败")
	}
	return nil
}

// ListMonth 返回某月的全部偏好标记，按日期、员工排序
func (r *PreferenceRepository) ListMonth(ctx context.Context, month model.MonthRef) ([]PreferenceMark, error) {
	const query = `
		SELECT day, employee, mark FROM preference_marks
		WHERE day >= $1 AND day < $2
		ORDER BY day, employee`

	start := month.Date(1)
	var marks []PreferenceMark
	if err := r.db.SelectContext(ctx, &marks, query, start, start.AddDate(0, 1, 0)); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询偏好失败")
	}
	return marks, nil
}

// DeleteEmployee 删除某员工的全部偏好，返回删除的行数
func (r *PreferenceRepository) DeleteEmployee(ctx context.Context, employee model.Employee) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM preference_marks WHERE employee = $1`, string(employee))
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "删除偏好失败")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "读取删除行数失败")
	}
	return n, nil
}

// PurgeOutside 删除保留窗口之外的标记，返回删除的行数
func (r *PreferenceRepository) PurgeOutside(ctx context.Context, now time.Time, months int) (int64, error) {
	if months < 1 {
		return 0, errors.InvalidInput("months", fmt.Sprintf("保留月数至少为 1: %d", months))
	}
	from, to := RetentionWindow(now, months)
	res, err := r.db.ExecContext(ctx, `DELETE FROM preference_marks WHERE day < $1 OR day > $2`, from, to)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "清理过期偏好失败")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "读取删除行数失败")
	}
	return n, nil
}

// RetentionWindow 保留窗口 [前 months-1 个月的 1 日, 后 months 个月的月末]
func RetentionWindow(now time.Time, months int) (from, to time.Time) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	from = first.AddDate(0, -(months - 1), 0)
	to = first.AddDate(0, months+1, -1)
	return from, to
}

// Entries 把标记转换为偏好条目：每位员工一条，列出 mark 为 1 的日期
func Entries(marks []PreferenceMark) []model.PreferenceEntry {
	byEmployee := make(map[model.Employee][]model.Day)
	var order []model.Employee
	for _, m := range marks {
		if _, seen := byEmployee[m.Employee]; !seen {
			order = append(order, m.Employee)
			byEmployee[m.Employee] = nil
		}
		if m.Mark == MarkListed {
			byEmployee[m.Employee] = append(byEmployee[m.Employee], m.Day.Day())
		}
	}

	entries := make([]model.PreferenceEntry, 0, len(order))
	for _, e := range order {
		days := byEmployee[e]
		if len(days) == 0 {
			continue
		}
		sort.Ints(days)
		entries = append(entries, model.PreferenceEntry{Employee: e, Dates: days})
	}
	return entries
}

func daysIn(m model.MonthRef) int {
	return m.Date(1).AddDate(0, 1, -1).Day()
}
