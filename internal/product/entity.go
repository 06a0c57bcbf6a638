// AngelaMos | 2026
// entity.go

package product

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Type string

const (
	TypePhysical Type = "physical"
	TypeRole     Type = "role"
	TypeFile     Type = "file"
	TypeCode     Type = "code"
	TypeCustom   Type = "custom"
)

type DeliveryMethod string

const (
	DeliveryNone     DeliveryMethod = "none"
	DeliveryAutoRole DeliveryMethod = "auto_role"
	DeliveryDownload DeliveryMethod = "download"
	DeliveryCodeGen  DeliveryMethod = "code_gen"
	DeliveryManual   DeliveryMethod = "manual"
)

// Delivery config keys understood per method.
const (
	ConfigRoleID       = "role_id"
	ConfigFilePath     = "file_path"
	ConfigFileName     = "file_name"
	ConfigCodeTemplate = "code_template"
)

const (
	DefaultCodeTemplate = "CODE-{uuid}"
	CodePlaceholder     = "{uuid}"
)

type Product struct {
	ID              int64          `db:"id"`
	Name            string         `db:"name"`
	Description     string         `db:"description"`
	Price           int64          `db:"price"`
	Stock           *int           `db:"stock"`
	IsActive        bool           `db:"is_active"`
	ArchivedAt      *time.Time     `db:"archived_at"`
	Type            Type           `db:"product_type"`
	DeliveryMethod  DeliveryMethod `db:"delivery_method"`
	AutoDelivery    bool           `db:"auto_delivery"`
	DeliveryConfig  DeliveryConfig `db:"delivery_config"`
	Category        string         `db:"category"`
	ImageURL        string         `db:"image_url"`
	PreviewImageURL string         `db:"preview_image_url"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (p *Product) IsArchived() bool {
	return p.ArchivedAt != nil
}

func (p *Product) Unlimited() bool {
	return p.Stock == nil
}

// Available reports whether the product can be sold right now.
func (p *Product) Available() bool {
	if !p.IsActive || p.IsArchived() {
		return false
	}
	return p.Stock == nil || *p.Stock > 0
}

// Automated reports whether the store can deliver with this method on
// its own.
func (m DeliveryMethod) Automated() bool {
	switch m {
	case DeliveryAutoRole, DeliveryDownload, DeliveryCodeGen:
		return true
	}
	return false
}

// Fulfillment is the delivery performed at purchase time. With auto
// delivery off an automated method becomes a manual handoff: no role
// grant, token or code is produced.
func (p *Product) Fulfillment() DeliveryMethod {
	if p.DeliveryMethod.Automated() && !p.AutoDelivery {
		return DeliveryManual
	}
	return p.DeliveryMethod
}

func (p *Product) RoleID() string {
	return p.DeliveryConfig.String(ConfigRoleID)
}

func (p *Product) FilePath() string {
	return p.DeliveryConfig.String(ConfigFilePath)
}

func (p *Product) FileName() string {
	if name := p.DeliveryConfig.String(ConfigFileName); name != "" {
		return name
	}
	path := p.FilePath()
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func (p *Product) CodeTemplate() string {
	if tpl := p.DeliveryConfig.String(ConfigCodeTemplate); tpl != "" {
		return tpl
	}
	return DefaultCodeTemplate
}

// ValidateDelivery checks that the delivery config carries what its
// method needs.
func (p *Product) ValidateDelivery() error {
	switch p.DeliveryMethod {
	case DeliveryNone, DeliveryManual:
		return nil
	case DeliveryAutoRole:
		if p.RoleID() == "" {
			return fmt.Errorf("auto_role delivery needs %s", ConfigRoleID)
		}
	case DeliveryDownload:
		if p.FilePath() == "" {
			return fmt.Errorf("download delivery needs %s", ConfigFilePath)
		}
	case DeliveryCodeGen:
		if !strings.Contains(p.CodeTemplate(), CodePlaceholder) {
			return fmt.Errorf("code template must contain %s", CodePlaceholder)
		}
	default:
		return fmt.Errorf("unknown delivery method %q", p.DeliveryMethod)
	}
	return nil
}

// DeliveryConfig is an opaque JSON object whose shape depends on the
// delivery method.
type DeliveryConfig map[string]any

func (c DeliveryConfig) String(key string) string {
	if c == nil {
		return ""
	}
	switch v := c[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (c DeliveryConfig) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *DeliveryConfig) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = DeliveryConfig{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan delivery config: unsupported type %T", src)
	}

	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("scan delivery config: %w", err)
	}
	*c = m
	return nil
}
