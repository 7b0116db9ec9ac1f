// 种子数据导入
// 按名称 upsert 产品类别/指纹/归属方; 归属方再次导入时整体替换其IP和域名规则; 服务直接新建
// 导入完成后做一次全量重算
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/pkg/logger"
	"github.com/deveyNull/fruitmapper/internal/pkg/utils"
	"github.com/deveyNull/fruitmapper/internal/service/classify"
	"github.com/deveyNull/fruitmapper/internal/service/rule"

	"gopkg.in/yaml.v3"
)

// File 种子文件结构
type File struct {
	FruitTypes []FruitTypeEntry `yaml:"fruit_types"`
	Fruits     []FruitEntry     `yaml:"fruits"`
	Owners     []OwnerEntry     `yaml:"owners"`
	Services   []ServiceEntry   `yaml:"services"`
}

// FruitTypeEntry 产品类别
type FruitTypeEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// FruitEntry 指纹, FruitType 为类别名称
type FruitEntry struct {
	Name            string     `yaml:"name"`
	FruitType       string     `yaml:"fruit_type"`
	MatchType       string     `yaml:"match_type"`
	MatchRegex      string     `yaml:"match_regex"`
	CountryOfOrigin string     `yaml:"country_of_origin"`
	DatePicked      *time.Time `yaml:"date_picked"`
}

// OwnerEntry 归属方及其规则
type OwnerEntry struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	ContactInfo string        `yaml:"contact_info"`
	IPs         []string      `yaml:"ips"`
	Domains     []DomainEntry `yaml:"domains"`
}

// DomainEntry 域名规则; 未指定 include_subdomains 时, 一级域名(恰好一个点)默认包含子域名
type DomainEntry struct {
	Domain            string `yaml:"domain"`
	IncludeSubdomains *bool  `yaml:"include_subdomains"`
}

// UnmarshalYAML 允许直接写域名字符串
func (d *DomainEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.Domain = node.Value
		return nil
	}
	type plain DomainEntry
	return node.Decode((*plain)(d))
}

// ServiceEntry 服务; http_data 可以是字符串, 也可以是 {html, headers} 映射
type ServiceEntry struct {
	IP       string    `yaml:"ip"`
	Port     int       `yaml:"port"`
	ASN      string    `yaml:"asn"`
	Country  string    `yaml:"country"`
	Domain   string    `yaml:"domain"`
	Banner   string    `yaml:"banner"`
	HTTPData yaml.Node `yaml:"http_data"`
}

// Summary 导入统计
type Summary struct {
	FruitTypesCreated int              `json:"fruit_types_created"`
	FruitTypesUpdated int              `json:"fruit_types_updated"`
	FruitsCreated     int              `json:"fruits_created"`
	FruitsUpdated     int              `json:"fruits_updated"`
	OwnersCreated     int              `json:"owners_created"`
	OwnersUpdated     int              `json:"owners_updated"`
	ServicesCreated   int              `json:"services_created"`
	Report            *classify.Report `json:"report"`
}

// ServiceCreator 服务写入
type ServiceCreator interface {
	CreateService(ctx context.Context, svc *asset.Service) error
}

// Importer 种子导入器
type Importer struct {
	rules        *rule.Store
	services     ServiceCreator
	orchestrator *classify.Orchestrator
}

// NewImporter 创建导入器
func NewImporter(rules *rule.Store, services ServiceCreator, orchestrator *classify.Orchestrator) *Importer {
	return &Importer{rules: rules, services: services, orchestrator: orchestrator}
}

// ImportFile 导入种子文件
func (i *Importer) ImportFile(ctx context.Context, path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return i.Import(ctx, f)
}

// Import 从 reader 读取并导入
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Summary, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	summary := &Summary{}
	steps := []struct {
		name string
		run  func(context.Context, *File, *Summary) error
	}{
		{"fruit_types", i.importFruitTypes},
		{"fruits", i.importFruits},
		{"owners", i.importOwners},
		{"services", i.importServices},
	}
	for _, step := range steps {
		if err := step.run(ctx, &file, summary); err != nil {
			logger.LogBusinessError(err, "seed_import", "seed import failed at "+step.name, nil)
			return summary, err
		}
	}

	report, err := i.orchestrator.ReclassifyAll(ctx, classify.ScopeAll)
	summary.Report = report
	if err != nil {
		return summary, err
	}

	logger.LogBusinessOperation("seed_import", "success", "seed data imported", map[string]interface{}{
		"fruit_types_created": summary.FruitTypesCreated,
		"fruits_created":      summary.FruitsCreated,
		"owners_created":      summary.OwnersCreated,
		"services_created":    summary.ServicesCreated,
		"run_id":              report.RunID,
	})
	return summary, nil
}

func (i *Importer) importFruitTypes(ctx context.Context, file *File, summary *Summary) error {
	for _, e := range file.FruitTypes {
		existing, err := i.rules.GetFruitTypeByName(ctx, e.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Description = e.Description
			if err := i.rules.UpdateFruitType(ctx, existing); err != nil {
				return fmt.Errorf("fruit type %q: %w", e.Name, err)
			}
			summary.FruitTypesUpdated++
			continue
		}
		if err := i.rules.AddFruitType(ctx, &asset.FruitType{Name: e.Name, Description: e.Description}); err != nil {
			return fmt.Errorf("fruit type %q: %w", e.Name, err)
		}
		summary.FruitTypesCreated++
	}
	return nil
}

func (i *Importer) importFruits(ctx context.Context, file *File, summary *Summary) error {
	for _, e := range file.Fruits {
		e := e // go1.21: 每次迭代独立的循环变量
		ft, err := i.rules.GetFruitTypeByName(ctx, e.FruitType)
		if err != nil {
			return err
		}
		if ft == nil {
			return fmt.Errorf("fruit %q: unknown fruit type %q", e.Name, e.FruitType)
		}

		fruit := &asset.Fruit{
			Name:            e.Name,
			FruitTypeID:     ft.ID,
			MatchType:       e.MatchType,
			CountryOfOrigin: e.CountryOfOrigin,
			DatePicked:      e.DatePicked,
		}
		if e.MatchRegex != "" {
			fruit.MatchRegex = &e.MatchRegex
		}

		existing, err := i.rules.GetFruitByName(ctx, e.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			fruit.BaseModel = existing.BaseModel
			if _, err := i.rules.UpdateFruit(ctx, fruit); err != nil {
				return fmt.Errorf("fruit %q: %w", e.Name, err)
			}
			summary.FruitsUpdated++
			continue
		}
		if err := i.rules.AddFruit(ctx, fruit); err != nil {
			return fmt.Errorf("fruit %q: %w", e.Name, err)
		}
		summary.FruitsCreated++
	}
	return nil
}

func (i *Importer) importOwners(ctx context.Context, file *File, summary *Summary) error {
	for _, e := range file.Owners {
		owner, err := i.rules.GetOwnerByName(ctx, e.Name)
		if err != nil {
			return err
		}
		if owner != nil {
			owner.Description = e.Description
			owner.ContactInfo = e.ContactInfo
			if err := i.rules.UpdateOwner(ctx, owner); err != nil {
				return fmt.Errorf("owner %q: %w", e.Name, err)
			}
			summary.OwnersUpdated++
		} else {
			owner = &asset.Owner{Name: e.Name, Description: e.Description, ContactInfo: e.ContactInfo}
			if err := i.rules.AddOwner(ctx, owner); err != nil {
				return fmt.Errorf("owner %q: %w", e.Name, err)
			}
			summary.OwnersCreated++
		}

		domains := make([]rule.DomainSpec, 0, len(e.Domains))
		for _, d := range e.Domains {
			domains = append(domains, rule.DomainSpec{Domain: d.Domain, IncludeSubdomains: includeSubdomains(d)})
		}
		if err := i.rules.ReplaceOwnerRules(ctx, owner.ID, e.IPs, domains); err != nil {
			return fmt.Errorf("owner %q rules: %w", e.Name, err)
		}
	}
	return nil
}

func (i *Importer) importServices(ctx context.Context, file *File, summary *Summary) error {
	for idx, e := range file.Services {
		e := e // go1.21: 每次迭代独立的循环变量
		if strings.TrimSpace(e.IP) == "" {
			return fmt.Errorf("service #%d: ip is required", idx+1)
		}
		svc := &asset.Service{
			IP:      strings.TrimSpace(e.IP),
			Port:    e.Port,
			ASN:     e.ASN,
			Country: e.Country,
			Domain:  optional(e.Domain),
			Banner:  optional(e.Banner),
		}
		httpData, err := encodeHTTPData(&e.HTTPData)
		if err != nil {
			return fmt.Errorf("service #%d http_data: %w", idx+1, err)
		}
		svc.HTTPData = httpData

		if err := i.services.CreateService(ctx, svc); err != nil {
			return fmt.Errorf("service #%d: %w", idx+1, err)
		}
		summary.ServicesCreated++
	}
	return nil
}

func includeSubdomains(d DomainEntry) bool {
	if d.IncludeSubdomains != nil {
		return *d.IncludeSubdomains
	}
	return utils.IsBaseDomain(utils.NormalizeDomain(d.Domain))
}

// encodeHTTPData 字符串原样保存, 映射按文件中的键顺序编码为JSON对象
// 响应头的顺序参与拼接, 不能经由 map 编码
func encodeHTTPData(node *yaml.Node) (*string, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			return nil, nil
		case "!!str":
			return optional(node.Value), nil
		}
		return nil, fmt.Errorf("unsupported scalar %s", node.Tag)
	case yaml.MappingNode:
		var b strings.Builder
		if err := writeJSON(&b, node); err != nil {
			return nil, err
		}
		s := b.String()
		return &s, nil
	}
	return nil, fmt.Errorf("unsupported node kind %d", node.Kind)
}

func writeJSON(b *strings.Builder, node *yaml.Node) error {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			b.WriteString("null")
			return nil
		}
		return writeJSON(b, node.Content[0])
	case yaml.AliasNode:
		return writeJSON(b, node.Alias)
	case yaml.MappingNode:
		b.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				b.WriteByte(',')
			}
			key, err := json.Marshal(node.Content[i].Value)
			if err != nil {
				return err
			}
			b.Write(key)
			b.WriteByte(':')
			if err := writeJSON(b, node.Content[i+1]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case yaml.SequenceNode:
		b.WriteByte('[')
		for i, item := range node.Content {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeJSON(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		var v interface{}
		if err := node.Decode(&v); err != nil {
			return err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		b.Write(raw)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
