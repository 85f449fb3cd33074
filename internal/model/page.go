package model

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

const TransformationRotate = "rotate"

// Transformation is a pending or applied rendering transformation for a
// single page, e.g. a corrective rotation recorded by the orientation
// detector.
type Transformation struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Page belongs to exactly one version. Pages are created only by the
// pagination stage of the ingestion pipeline and are always replaced as a
// full set; individual pages are never partially updated.
type Page struct {
	gorm.Model
	ID         string `gorm:"primaryKey;uuid;not null;"`
	VersionID  string `gorm:"uuid;not null;uniqueIndex:idx_pages_version_number"`
	PageNumber int    `gorm:"not null;uniqueIndex:idx_pages_version_number"`
	// Transformations holds a JSON encoded list of Transformation values.
	Transformations string
}

func (Page) TableName() string {
	return "pages"
}

// CachePartition returns the cache partition key for page scoped
// artifacts, nested under the owning version's partition key.
func (p *Page) CachePartition(versionPartition string) string {
	return fmt.Sprintf("%s-page-%s", versionPartition, p.ID)
}

// TransformationList decodes the page's transformation list. A page with
// no recorded transformations yields an empty list.
func (p *Page) TransformationList() ([]Transformation, error) {
	if p.Transformations == "" {
		return []Transformation{}, nil
	}
	var list []Transformation
	if err := json.Unmarshal([]byte(p.Transformations), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AppendTransformation appends a transformation to the page's list.
func (p *Page) AppendTransformation(t Transformation) error {
	list, err := p.TransformationList()
	if err != nil {
		return err
	}
	list = append(list, t)
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	p.Transformations = string(data)
	return nil
}

// RotateTransformation builds the corrective rotation recorded when the
// orientation detector reports a page rotated by the given degrees. The
// recorded rotation is the inverse needed to display the page upright.
func RotateTransformation(detectedDegrees int) Transformation {
	return Transformation{
		Name:      TransformationRotate,
		Arguments: fmt.Sprintf(`{"degrees": %d}`, 360-detectedDegrees),
	}
}
