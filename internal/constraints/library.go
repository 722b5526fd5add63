// Package constraints 约束目录，供客户端展示排班规则与可调参数
package constraints

import (
	"strconv"

	"github.com/kinmu/kinmu/pkg/scheduler/constraint"
)

// Param 约束参数定义
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, float
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// Definition 约束定义
type Definition struct {
	Kind        constraint.Kind `json:"kind"`
	DisplayName string          `json:"display_name"`
	Type        string          `json:"type"` // hard 硬约束, soft 优化目标
	Description string          `json:"description"`
	Params      []Param         `json:"params,omitempty"`
}

// LibraryResponse 约束目录响应
type LibraryResponse struct {
	Library []Definition      `json:"library"`
	Params  constraint.Params `json:"params"`
}

// KindObjective 目标函数在目录中的标识
const KindObjective constraint.Kind = "objective"

// Library 按当前默认参数生成约束目录
func Library(p constraint.Params) LibraryResponse {
	ftoa := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

	return LibraryResponse{
		Params: p,
		Library: []Definition{
			{
				Kind:        constraint.KindPin,
				DisplayName: "固定休息/上班",
				Type:        "hard",
				Description: "请求中的固定项与休息希望把对应单元格固定为休息或上班。",
			},
			{
				Kind:        constraint.KindCoverage,
				DisplayName: "每日上班人数",
				Type:        "hard",
				Description: "每天上班的人数必须恰好等于要求人数。",
				Params: []Param{
					{Name: "headcount", Type: "int", Description: "每天上班人数", Default: strconv.Itoa(p.Headcount), Min: "1"},
				},
			},
			{
				Kind:        constraint.KindMaxConsecutive,
				DisplayName: "连续上班上限",
				Type:        "hard",
				Description: "任意连续窗口内至少休息一天，即连续上班不超过窗口长度减一。",
				Params: []Param{
					{Name: "window", Type: "int", Description: "检查窗口天数", Default: strconv.Itoa(p.Window), Min: "1"},
				},
			},
			{
				Kind:        constraint.KindFairnessMin,
				DisplayName: "出勤下限",
				Type:        "hard",
				Description: "每人出勤天数不少于 天数/(人数×下限系数)。",
				Params: []Param{
					{Name: "lower_factor", Type: "float", Description: "下限系数", Default: ftoa(p.LowerFactor), Min: "1"},
				},
			},
			{
				Kind:        constraint.KindFairnessMax,
				DisplayName: "出勤上限",
				Type:        "hard",
				Description: "每人出勤天数不超过 (天数/人数)×上限系数。",
				Params: []Param{
					{Name: "upper_factor", Type: "float", Description: "上限系数", Default: ftoa(p.UpperFactor), Min: "1"},
				},
			},
			{
				Kind:        KindObjective,
				DisplayName: "休息天数最小化",
				Type:        "soft",
				Description: "在满足全部硬约束的前提下使全员休息天数之和最小。",
			},
		},
	}
}
