package recipe

import "strings"

type dishRule struct {
	keywords []string
	name     string
}

// First match wins, so more specific combinations come first.
var dishRules = []dishRule{
	{[]string{"牛肉", "土豆"}, "土豆炖牛肉"},
	{[]string{"鸡", "花生"}, "宫保鸡丁"},
	{[]string{"排骨", "糖醋"}, "糖醋排骨"},
	{[]string{"鱼", "酸菜"}, "酸菜鱼"},
	{[]string{"鸡", "辣椒"}, "辣子鸡"},
	{[]string{"豆腐", "麻婆"}, "麻婆豆腐"},
	{[]string{"肉丝", "鱼香"}, "鱼香肉丝"},
	{[]string{"鸡翅", "可乐"}, "可乐鸡翅"},
	{[]string{"鸡翅", "红烧"}, "红烧鸡翅"},
	{[]string{"鱼", "红烧"}, "红烧鱼"},
	{[]string{"鱼", "清蒸"}, "清蒸鱼"},
	{[]string{"鸡", "白切"}, "白切鸡"},
	{[]string{"鸡", "口水"}, "口水鸡"},
	{[]string{"肉", "回锅"}, "回锅肉"},
	{[]string{"鱼", "水煮"}, "水煮鱼"},
	{[]string{"里脊", "糖醋"}, "糖醋里脊"},
	{[]string{"肉", "红烧"}, "红烧肉"},
	{[]string{"土豆", "茄子", "青椒"}, "地三鲜"},
}

// GuessName maps keyword combinations found in text to a dish name, falling
// back to PlaceholderName.
func GuessName(text string) string {
	lower := strings.ToLower(text)
	for _, r := range dishRules {
		if containsAll(lower, r.keywords) {
			return r.name
		}
	}
	return PlaceholderName
}

func containsAll(s string, keywords []string) bool {
	for _, k := range keywords {
		if !strings.Contains(s, k) {
			return false
		}
	}
	return true
}
