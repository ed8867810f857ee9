package rounddef

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/spf13/viper"

	"ipo/engine"
)

// Lot 是設定檔中的單一標的：引擎參數加上展示用的標題與描述
type Lot struct {
	engine.LotDef `mapstructure:",squash"`
	Title         string `json:"title" mapstructure:"title"`
	Description   string `json:"description" mapstructure:"description"`
}

// Seat 是設定檔中的單一席位
type Seat struct {
	Name string `json:"name" mapstructure:"name"`
}

// Definition 描述一場可開局的回合：標的、席位與規則組合。
// 規則欄位以字串表示，載入時轉換為引擎的列舉型別。
type Definition struct {
	Name                    string `json:"name" mapstructure:"name"`
	Mode                    string `json:"mode" mapstructure:"mode"`
	Increment               int    `json:"increment" mapstructure:"increment"`
	Decrement               int    `json:"decrement" mapstructure:"decrement"`
	TierFloorUnit           int    `json:"tierFloorUnit" mapstructure:"tierFloorUnit"`
	AutoResolveSingleBidder bool   `json:"autoResolveSingleBidder" mapstructure:"autoResolveSingleBidder"`
	Priority                string `json:"priority" mapstructure:"priority"`
	StartingCash            int    `json:"startingCash" mapstructure:"startingCash"`
	Seats                   []Seat `json:"seats" mapstructure:"seats"`
	Lots                    []Lot  `json:"lots" mapstructure:"lots"`
}

// Load 從設定檔載入回合定義，支援 viper 能解析的所有格式。
// 標的描述會經過 sanitizer 清洗，避免把未過濾的 HTML 推給前端。
func Load(path string, sanitizer *bluemonday.Policy) (*Definition, error) {
	const op = "rounddef.Load"

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("[%s] Fail to read round definition, path=%s, err=%w", op, path, err)
	}

	var def Definition
	if err := v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("[%s] Fail to unmarshal round definition, err=%w", op, err)
	}

	if sanitizer != nil {
		for i := range def.Lots {
			def.Lots[i].Title = sanitizer.Sanitize(def.Lots[i].Title)
			def.Lots[i].Description = sanitizer.Sanitize(def.Lots[i].Description)
		}
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("[%s] Invalid round definition, err=%w", op, err)
	}
	return &def, nil
}

// Validate 檢查回合定義是否完整
func (d *Definition) Validate() error {
	const op = "Definition.Validate"
	if d.Name == "" {
		return fmt.Errorf("[%s] name cannot be empty", op)
	}
	if len(d.Seats) < 2 {
		return fmt.Errorf("[%s] at least two seats are required, got %d", op, len(d.Seats))
	}
	if len(d.Lots) == 0 {
		return fmt.Errorf("[%s] at least one lot is required", op)
	}
	if d.StartingCash <= 0 {
		return fmt.Errorf("[%s] starting cash must be positive, got %d", op, d.StartingCash)
	}
	if _, err := d.parseMode(); err != nil {
		return fmt.Errorf("[%s] %w", op, err)
	}
	if _, err := d.parsePriority(); err != nil {
		return fmt.Errorf("[%s] %w", op, err)
	}
	return nil
}

func (d *Definition) parseMode() (engine.Mode, error) {
	switch strings.ToLower(d.Mode) {
	case "", "ascending":
		return engine.ModeAscending, nil
	case "sealed":
		return engine.ModeSealed, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", d.Mode)
	}
}

func (d *Definition) parsePriority() (engine.PriorityPolicy, error) {
	switch strings.ToLower(d.Priority) {
	case "", "stays":
		return engine.PriorityStays, nil
	case "past_winner":
		return engine.PriorityPastWinner, nil
	default:
		return 0, fmt.Errorf("unknown priority policy %q", d.Priority)
	}
}

// RuleSet 將定義轉換為引擎的規則組合
func (d *Definition) RuleSet() (engine.RuleSet, error) {
	const op = "Definition.RuleSet"
	mode, err := d.parseMode()
	if err != nil {
		return engine.RuleSet{}, fmt.Errorf("[%s] %w", op, err)
	}
	priority, err := d.parsePriority()
	if err != nil {
		return engine.RuleSet{}, fmt.Errorf("[%s] %w", op, err)
	}
	rules := engine.RuleSet{
		Mode:                    mode,
		Increment:               d.Increment,
		Decrement:               d.Decrement,
		TierFloorUnit:           d.TierFloorUnit,
		AutoResolveSingleBidder: d.AutoResolveSingleBidder,
		Priority:                priority,
	}
	if err := rules.Validate(); err != nil {
		return engine.RuleSet{}, fmt.Errorf("[%s] %w", op, err)
	}
	return rules, nil
}

// LotDefs 回傳引擎所需的標的定義
func (d *Definition) LotDefs() []engine.LotDef {
	defs := make([]engine.LotDef, len(d.Lots))
	for i, lot := range d.Lots {
		defs[i] = lot.LotDef
	}
	return defs
}
