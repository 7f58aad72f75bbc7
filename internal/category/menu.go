// Package category 定义聊天组件的固定两级分类菜单。
package category

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory 表示请求的分类不是菜单中的叶子选项。
var ErrUnknownCategory = errors.New("unknown category")

const (
	acknowledgementFormat = "You've selected %s. You can now ask questions related to this category."
	// MenuMessage 是返回主菜单时追加的助手消息。
	MenuMessage = "I've returned to the main menu. What would you like to know about?"
)

// Option 是菜单中的一个按钮。有 Options 的按钮展开为下拉列表，本身不可选择。
type Option struct {
	ID      string
	Name    string
	Options []Option
}

// IsDropdown 表示该按钮是否为下拉分组。
func (o Option) IsDropdown() bool {
	return len(o.Options) > 0
}

// Menu 是固定的顶层菜单。
var Menu = []Option{
	{ID: "HR Policy", Name: "HR Policy"},
	{ID: "IT Policy", Name: "IT Policy"},
	{ID: "SOP", Name: "SOP", Options: []Option{
		{ID: "SOPP_Operation", Name: "Operation"},
		{ID: "SOPP_Procurement", Name: "Procurement"},
		{ID: "SOPP_Revenue", Name: "Revenue"},
		{ID: "SOPP_Sales", Name: "Sales"},
	}},
}

// Selection 是解析后的叶子选项：ID 转发给后端，Label 显示在对话中。
type Selection struct {
	ID    string
	Label string
}

// Acknowledgement 返回选择分类后助手的确认消息。
func (s Selection) Acknowledgement() string {
	return fmt.Sprintf(acknowledgementFormat, s.Label)
}

// Lookup 根据叶子 ID 查找分类。下拉子选项的标签形如 "SOP - Operation"。
func Lookup(id string) (Selection, error) {
	for _, top := range Menu {
		if !top.IsDropdown() {
			if top.ID == id {
				return Selection{ID: top.ID, Label: top.Name}, nil
			}
			continue
		}
		for _, sub := range top.Options {
			if sub.ID == id {
				return Selection{ID: sub.ID, Label: top.Name + " - " + sub.Name}, nil
			}
		}
	}
	return Selection{}, fmt.Errorf("%w: %q", ErrUnknownCategory, id)
}
