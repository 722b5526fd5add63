package calendar

// WeekdayNamesJA 日文星期标签（周一起）
var WeekdayNamesJA = [7]string{"月曜", "火曜", "水曜", "木曜", "金曜", "土曜", "日曜"}

// WeekdayNamesEN 英文星期标签（周一起）
var WeekdayNamesEN = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdayNamesZH 中文星期标签（周一起）
var WeekdayNamesZH = [7]string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

// Labels 按区域返回星期标签，未知区域回退到日文
func Labels(locale string) [7]string {
	switch locale {
	case "en":
		return WeekdayNamesEN
	case "zh":
		return WeekdayNamesZH
	default:
		return WeekdayNamesJA
	}
}
