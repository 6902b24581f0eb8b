package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"satpipe/internal/filestate"
)

// DateTimeLayout is the canonical acquisition time form. It doubles as the
// execution key handed to the workflow runtime.
const DateTimeLayout = "2006-01-02T15:04:05"

// timestampLayout sorts lexically in every dialect.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// noArea is the stored area_id of records without an area.
const noArea int64 = 0

// FileRecord is one row of the file table.
type FileRecord struct {
	ID            int64            `json:"id"`
	ProductTypeID int64            `json:"product_type_id"`
	AreaID        *int64           `json:"area_id,omitempty"`
	DateTime      time.Time        `json:"date_time"`
	Status        filestate.Status `json:"status"`
	Filepath      string           `json:"filepath,omitempty"`
	Multihash     string           `json:"multihash,omitempty"`
	LastProcessed *time.Time       `json:"last_processed,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ExecutionKey formats the record's acquisition time for the runtime.
func (r *FileRecord) ExecutionKey() string {
	return r.DateTime.UTC().Format(DateTimeLayout)
}

// Metadata describes a record to register with Load. Either ProductType
// (catalog short name) or ProductTypeID must be set, likewise Area or
// AreaID when the product is regional. A non-zero ID updates that record
// instead of inserting.
type Metadata struct {
	ID            int64
	ProductTypeID int64
	ProductType   string
	AreaID        *int64
	Area          string
	DateTime      time.Time
	Status        filestate.Status
	Multihash     string
}

// MetadataFromFields builds Metadata from rendered output fields as they
// appear in stage configuration.
func MetadataFromFields(fields map[string]string) (Metadata, error) {
	var md Metadata
	for key, raw := range fields {
		value := strings.TrimSpace(raw)
		switch key {
		case "id":
			id, err := parseID(key, value)
			if err != nil {
				return Metadata{}, err
			}
			md.ID = id
		case "product_type_id", "product_id":
			id, err := parseID(key, value)
			if err != nil {
				return Metadata{}, err
			}
			md.ProductTypeID = id
		case "product_type", "product":
			md.ProductType = value
		case "area_id":
			if isNullValue(value) {
				continue
			}
			id, err := parseID(key, value)
			if err != nil {
				return Metadata{}, err
			}
			md.AreaID = &id
		case "area":
			if !isNullValue(value) {
				md.Area = value
			}
		case "date_time":
			dt, err := ParseDateTime(value)
			if err != nil {
				return Metadata{}, err
			}
			md.DateTime = dt
		case "status":
			status, err := filestate.Parse(value)
			if err != nil {
				return Metadata{}, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			md.Status = status
		case "multihash":
			md.Multihash = value
		case "filepath":
			return Metadata{}, fmt.Errorf("%w: filepath is bound to the output path and cannot be set", ErrValidation)
		default:
			return Metadata{}, fmt.Errorf("%w: unknown metadata field %q", ErrValidation, key)
		}
	}
	return md, nil
}

// ParseDateTime accepts the canonical layout plus RFC 3339, space-separated
// and date-only forms. Results are UTC.
func ParseDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	layouts := []string{DateTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05", "20060102T150405", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date_time %q not recognized", ErrValidation, value)
}

// Filter narrows record listings.
type Filter struct {
	Statuses       []filestate.Status
	ProductTypeIDs []int64
	AreaIDs        []int64
	Limit          int
}

// Product is a product type catalog entry.
type Product struct {
	ID        int64
	ShortName string
}

// Area is a geographic area catalog entry.
type Area struct {
	ID        int64
	ShortName string
}

func parseID(field, value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrValidation, field, value)
	}
	return id, nil
}

func isNullValue(value string) bool {
	switch strings.ToLower(value) {
	case "", "null", "none":
		return true
	}
	return false
}

func areaToColumn(area *int64) int64 {
	if area == nil {
		return noArea
	}
	return *area
}

func areaFromColumn(value int64) *int64 {
	if value == noArea {
		return nil
	}
	v := value
	return &v
}
