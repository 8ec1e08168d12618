package profile

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"regexp"
	"strings"

	"github.com/chaos-io/brandcam/palette"
)

const (
	DefaultPrimary   = "#0052CC"
	DefaultSecondary = "#00B8D9"
)

// Level 信息披露等级，逐级追加面板
type Level string

const (
	Low    Level = "low"
	Medium Level = "medium"
	High   Level = "high"
)

// ParseLevel 大小写不敏感，空串视为 Medium
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return Medium, nil
	case Low:
		return Low, nil
	case Medium:
		return Medium, nil
	case High:
		return High, nil
	default:
		return "", &ValidationError{Field: "privacy_level", Value: s, Reason: "must be one of low, medium, high"}
	}
}

// Rank 用于比较等级高低
func (l Level) Rank() int {
	switch l {
	case Low:
		return 0
	case High:
		return 2
	default:
		return 1
	}
}

// AtLeast l 是否不低于 other
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank()
}

type Contact struct {
	Email    string `json:"email,omitempty"`
	Telegram string `json:"telegram,omitempty"`
}

type Colors struct {
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
}

type Branding struct {
	LogoURI string `json:"logo_uri,omitempty"`
	Colors  Colors `json:"corporate_colors"`
	Slogan  string `json:"slogan,omitempty"`
}

// UnmarshalJSON 兼容旧字段名 logo_url
func (b *Branding) UnmarshalJSON(data []byte) error {
	type plain Branding
	var aux struct {
		plain
		LegacyLogo string `json:"logo_url"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*b = Branding(aux.plain)
	if b.LogoURI == "" {
		b.LogoURI = aux.LegacyLogo
	}
	return nil
}

// Profile 员工资料。按值传递，替换时整体替换。
type Profile struct {
	FullName       string   `json:"full_name,omitempty"`
	Position       string   `json:"position,omitempty"`
	Company        string   `json:"company,omitempty"`
	Department     string   `json:"department,omitempty"`
	OfficeLocation string   `json:"office_location,omitempty"`
	Contact        Contact  `json:"contact"`
	Branding       Branding `json:"branding"`
	Level          Level    `json:"privacy_level,omitempty"`
}

// ValidationError 某个字段不合法
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// colorPattern 资料里的颜色必须带 #，和导出的 JSON 保持一致
	colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)
)

// New 规范化并校验，返回可直接渲染的资料
func New(p Profile) (Profile, error) {
	p = p.normalized()
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) normalized() Profile {
	trim := strings.TrimSpace
	p.FullName = trim(p.FullName)
	p.Position = trim(p.Position)
	p.Company = trim(p.Company)
	p.Department = trim(p.Department)
	p.OfficeLocation = trim(p.OfficeLocation)
	p.Contact.Email = trim(p.Contact.Email)
	p.Contact.Telegram = trim(p.Contact.Telegram)
	p.Branding.LogoURI = trim(p.Branding.LogoURI)
	p.Branding.Slogan = trim(p.Branding.Slogan)
	p.Branding.Colors.Primary = trim(p.Branding.Colors.Primary)
	p.Branding.Colors.Secondary = trim(p.Branding.Colors.Secondary)
	if p.Branding.Colors.Primary == "" {
		p.Branding.Colors.Primary = DefaultPrimary
	}
	if p.Branding.Colors.Secondary == "" {
		p.Branding.Colors.Secondary = DefaultSecondary
	}
	if lvl, err := ParseLevel(string(p.Level)); err == nil {
		p.Level = lvl
	}
	return p
}

// Validate 只校验，不修改
func (p Profile) Validate() error {
	if p.Contact.Email != "" && !emailPattern.MatchString(p.Contact.Email) {
		return &ValidationError{Field: "contact.email", Value: p.Contact.Email, Reason: "expected local@domain.tld"}
	}
	if !colorPattern.MatchString(p.Branding.Colors.Primary) {
		return &ValidationError{Field: "branding.corporate_colors.primary", Value: p.Branding.Colors.Primary, Reason: "expected #RGB or #RRGGBB"}
	}
	if !colorPattern.MatchString(p.Branding.Colors.Secondary) {
		return &ValidationError{Field: "branding.corporate_colors.secondary", Value: p.Branding.Colors.Secondary, Reason: "expected #RGB or #RRGGBB"}
	}
	if _, err := ParseLevel(string(p.Level)); err != nil {
		return err
	}
	return nil
}

// Primary 主色，New 之后不会失败
func (p Profile) Primary() color.RGBA {
	return mustColor(p.Branding.Colors.Primary, DefaultPrimary)
}

// Secondary 辅色
func (p Profile) Secondary() color.RGBA {
	return mustColor(p.Branding.Colors.Secondary, DefaultSecondary)
}

func mustColor(hex, fallback string) color.RGBA {
	c, err := palette.ParseHex(hex)
	if err != nil {
		return palette.MustHex(fallback)
	}
	return c
}

// TelegramURL t.me 链接，去掉开头的 @
func (p Profile) TelegramURL() string {
	handle := strings.TrimPrefix(p.Contact.Telegram, "@")
	if handle == "" {
		return ""
	}
	return "https://t.me/" + handle
}

// MailtoURL mailto 链接
func (p Profile) MailtoURL() string {
	if p.Contact.Email == "" {
		return ""
	}
	return "mailto:" + p.Contact.Email
}

// OrgLines 非空的公司、部门、地点，按顺序
func (p Profile) OrgLines() []string {
	var lines []string
	for _, s := range []string{p.Company, p.Department, p.OfficeLocation} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

type envelope struct {
	Employee *Profile `json:"employee"`
}

// Decode 接受 {"employee": {...}} 或裸对象，解码后经过 New
func Decode(data []byte) (Profile, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	var p Profile
	if env.Employee != nil {
		p = *env.Employee
	} else if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return New(p)
}

// Encode 写成带 employee 外壳的缩进 JSON
func Encode(p Profile) ([]byte, error) {
	data, err := json.MarshalIndent(envelope{Employee: &p}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return data, nil
}

// ReadFile 读取资料文件
func ReadFile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Decode(data)
}

// WriteFile 保存资料文件
func WriteFile(path string, p Profile) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
