package rules

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shengyanli1982/canbridge-go/internal/canbus"
	"github.com/shengyanli1982/canbridge-go/internal/constants"
)

// 全局验证器实例，用于限速条目验证
var validate = validator.New()

// limitEntry 代表规则文件中单个限速条目的原始形态
type limitEntry struct {
	Rate  float64 `yaml:"rate" validate:"required,gt=0"`
	Burst int     `yaml:"burst" validate:"omitempty,gte=1"`
}

// Manager 代表规则管理器，负责规则文件的加载、验证和管理
type Manager struct {
	ruleSet   *RuleSet            // 当前加载的规则集实例
	rulesPath string              // 规则文件的绝对路径
	validator *validator.Validate // 条目验证器
}

// NewManager 创建新的规则管理器实例
func NewManager() *Manager {
	return &Manager{
		ruleSet:   Empty(),
		validator: validate,
	}
}

// LoadFromFile 从指定路径加载规则文件并进行验证
// 任何一处错误都会携带出错字段名返回，加载失败时原有规则集保持不变
func (m *Manager) LoadFromFile(rulesPath string) error {
	if _, err := os.Stat(rulesPath); os.IsNotExist(err) {
		return fmt.Errorf("rules file not found: %s", rulesPath)
	}

	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}

	ruleSet, err := m.Parse(data)
	if err != nil {
		return err
	}

	m.ruleSet = ruleSet
	m.rulesPath, _ = filepath.Abs(rulesPath)
	return nil
}

// Parse 解析规则文件内容为不可变规则集
func (m *Manager) Parse(data []byte) (*RuleSet, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, newConfigError("(root)", "top-level YAML must be a mapping: %v", err)
	}

	var (
		drop   []uint32
		remap  map[uint32]uint32
		limits map[uint32]Limit
		err    error
	)

	for key := range doc {
		switch key {
		case "limits", "actions":
		default:
			return nil, newConfigError(key, "unknown top-level key")
		}
	}

	if node, exists := doc["limits"]; exists {
		if limits, err = m.parseLimits(&node); err != nil {
			return nil, err
		}
	}

	if node, exists := doc["actions"]; exists {
		if drop, remap, err = m.parseActions(&node); err != nil {
			return nil, err
		}
	}

	return FromParts(drop, remap, limits)
}

// parseLimits 解析limits段：标识符到{rate, burst}的映射
// burst缺省为ceil(rate)
func (m *Manager) parseLimits(node *yaml.Node) (map[uint32]Limit, error) {
	var raw map[string]yaml.Node
	if err := node.Decode(&raw); err != nil {
		return nil, newConfigError("limits", "must be a mapping: %v", err)
	}

	limits := make(map[uint32]Limit, len(raw))
	for idKey, entryNode := range raw {
		field := fmt.Sprintf("limits[%s]", idKey)

		id, err := parseCANID(idKey, field)
		if err != nil {
			return nil, err
		}

		// 先按原始映射检查未知键，再解码为结构体
		var keys map[string]yaml.Node
		if err := entryNode.Decode(&keys); err != nil {
			return nil, newConfigError(field, "value must be a mapping: %v", err)
		}
		for key := range keys {
			if key != "rate" && key != "burst" {
				return nil, newConfigError(field, "unknown key %q", key)
			}
		}

		var entry limitEntry
		if err := entryNode.Decode(&entry); err != nil {
			return nil, newConfigError(field, "invalid value: %v", err)
		}
		if err := m.validator.Struct(&entry); err != nil {
			if entry.Rate <= 0 {
				return nil, newConfigError(field, "rate must be > 0, got %v", entry.Rate)
			}
			return nil, newConfigError(field, "burst must be >= 1, got %d", entry.Burst)
		}

		// 显式写出的burst必须有效，缺省时取ceil(rate)
		if _, hasBurst := keys["burst"]; hasBurst {
			if entry.Burst < 1 {
				return nil, newConfigError(field, "burst must be >= 1, got %d", entry.Burst)
			}
		} else {
			entry.Burst = int(math.Ceil(entry.Rate))
		}

		limits[id] = Limit{Rate: entry.Rate, Burst: entry.Burst}
	}
	return limits, nil
}

// parseActions 解析actions段：drop列表和remap列表
func (m *Manager) parseActions(node *yaml.Node) ([]uint32, map[uint32]uint32, error) {
	var raw map[string]yaml.Node
	if err := node.Decode(&raw); err != nil {
		return nil, nil, newConfigError("actions", "must be a mapping: %v", err)
	}

	for key := range raw {
		if key != "drop" && key != "remap" {
			return nil, nil, newConfigError("actions."+key, "unknown key")
		}
	}

	var drop []uint32
	if dropNode, exists := raw["drop"]; exists {
		var items []interface{}
		if err := dropNode.Decode(&items); err != nil {
			return nil, nil, newConfigError("actions.drop", "must be a list: %v", err)
		}
		for _, item := range items {
			id, err := parseCANIDValue(item, "actions.drop")
			if err != nil {
				return nil, nil, err
			}
			drop = append(drop, id)
		}
	}

	remap := make(map[uint32]uint32)
	if remapNode, exists := raw["remap"]; exists {
		var items []map[string]interface{}
		if err := remapNode.Decode(&items); err != nil {
			return nil, nil, newConfigError("actions.remap", "must be a list of {from, to} mappings: %v", err)
		}
		for _, item := range items {
			for key := range item {
				if key != "from" && key != "to" {
					return nil, nil, newConfigError("actions.remap", "unknown key %q", key)
				}
			}
			fromVal, hasFrom := item["from"]
			toVal, hasTo := item["to"]
			if !hasFrom || !hasTo {
				return nil, nil, newConfigError("actions.remap", "each item must be {from: id, to: id}")
			}

			from, err := parseCANIDValue(fromVal, "actions.remap.from")
			if err != nil {
				return nil, nil, err
			}
			to, err := parseCANIDValue(toVal, "actions.remap.to")
			if err != nil {
				return nil, nil, err
			}

			if _, exists := remap[from]; exists {
				return nil, nil, newConfigError("actions.remap", "duplicate 'from' identifier %s", canbus.FormatID(from))
			}
			remap[from] = to
		}
	}

	return drop, remap, nil
}

// GetRuleSet 返回当前加载的规则集实例
func (m *Manager) GetRuleSet() *RuleSet {
	return m.ruleSet
}

// GetRulesPath 返回当前规则文件的绝对路径
func (m *Manager) GetRulesPath() string {
	return m.rulesPath
}

// parseCANID 解析字符串形式的CAN标识符
// 接受 0x 前缀十六进制和十进制，允许下划线分隔
func parseCANID(val, field string) (uint32, error) {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(val)), "_", "")

	var (
		id  uint64
		err error
	)
	if strings.HasPrefix(s, "0x") {
		id, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		id, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, newConfigError(field, "invalid CAN identifier format %q", val)
	}

	if id > uint64(constants.MaxExtendedID) {
		return 0, newConfigError(field, "identifier 0x%X out of range [0, 0x%X]", id, constants.MaxExtendedID)
	}
	return uint32(id), nil
}

// parseCANIDValue 解析YAML标量形式的CAN标识符，接受整数或字符串
func parseCANIDValue(val interface{}, field string) (uint32, error) {
	switch v := val.(type) {
	case int:
		if v < 0 || uint64(v) > uint64(constants.MaxExtendedID) {
			return 0, newConfigError(field, "identifier %d out of range [0, 0x%X]", v, constants.MaxExtendedID)
		}
		return uint32(v), nil
	case uint64:
		if v > uint64(constants.MaxExtendedID) {
			return 0, newConfigError(field, "identifier %d out of range [0, 0x%X]", v, constants.MaxExtendedID)
		}
		return uint32(v), nil
	case string:
		return parseCANID(v, field)
	default:
		return 0, newConfigError(field, "identifier must be an integer or hex/dec string, got %T", val)
	}
}
