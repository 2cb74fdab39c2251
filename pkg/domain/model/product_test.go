package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

func ptr(v float64) *float64 { return &v }

func TestProductRecord_IsPartial(t *testing.T) {
	gt.Bool(t, (&model.ProductRecord{ID: "p1"}).IsPartial()).True()
	gt.Bool(t, (&model.ProductRecord{ID: "p1", Name: "Serum"}).IsPartial()).True()
	gt.Bool(t, (&model.ProductRecord{ID: "p1", Name: "Serum", ImageURL: "https://img/p1.png"}).IsPartial()).False()
}

func TestProductRecord_Clone(t *testing.T) {
	orig := &model.ProductRecord{
		ID:             "p1",
		Name:           "Serum",
		Attributes:     map[string]string{"texture": "gel"},
		TargetConcerns: []string{"acne"},
		Similarity:     ptr(0.8),
	}
	c := orig.Clone()
	c.Attributes["texture"] = "cream"
	c.TargetConcerns[0] = "redness"
	*c.Similarity = 0.1

	gt.Value(t, orig.Attributes["texture"]).Equal("gel")
	gt.Value(t, orig.TargetConcerns[0]).Equal("acne")
	gt.Value(t, *orig.Similarity).Equal(0.8)
}

func TestProductRecord_FillFrom(t *testing.T) {
	partial := &model.ProductRecord{ID: "p2", Similarity: ptr(0.9), Price: 12}
	full := &model.ProductRecord{
		ID:              "p2",
		Name:            "Barrier Cream",
		Brand:           "Acme",
		Price:           30,
		ImageURL:        "https://img/p2.png",
		Rating:          4.5,
		TargetSkinTypes: []types.SkinType{types.SkinTypeDry},
	}

	partial.FillFrom(full)
	gt.Value(t, partial.Name).Equal("Barrier Cream")
	gt.Value(t, partial.ImageURL).Equal("https://img/p2.png")
	gt.Value(t, partial.Price).Equal(12.0)
	gt.Value(t, *partial.Similarity).Equal(0.9)
	gt.Bool(t, partial.IsPartial()).False()

	t.Run("ignores other ids", func(t *testing.T) {
		p := &model.ProductRecord{ID: "p3"}
		p.FillFrom(full)
		gt.Value(t, p.Name).Equal("")
	})
}

func TestProductFilter_Match(t *testing.T) {
	p := &model.ProductRecord{
		ID:              "p1",
		Category:        "serum",
		Price:           25,
		TargetConcerns:  []string{"acne", "redness"},
		TargetSkinTypes: []types.SkinType{types.SkinTypeOily},
	}

	tests := []struct {
		name   string
		filter *model.ProductFilter
		want   bool
	}{
		{"nil filter", nil, true},
		{"empty filter", &model.ProductFilter{}, true},
		{"category match", &model.ProductFilter{Category: "serum"}, true},
		{"category mismatch", &model.ProductFilter{Category: "toner"}, false},
		{"skin type match", &model.ProductFilter{SkinType: types.SkinTypeOily}, true},
		{"skin type mismatch", &model.ProductFilter{SkinType: types.SkinTypeDry}, false},
		{"price under", &model.ProductFilter{MaxPrice: 30}, true},
		{"price over", &model.ProductFilter{MaxPrice: 20}, false},
		{"any concern", &model.ProductFilter{Concerns: []string{"wrinkles", "redness"}}, true},
		{"no concern", &model.ProductFilter{Concerns: []string{"wrinkles"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.filter.Match(p)).Equal(tt.want)
		})
	}
}

func TestProductRecord_Summary(t *testing.T) {
	p := &model.ProductRecord{ID: "p1", Name: "Serum", Brand: "Acme", Price: 10, Similarity: ptr(0.7)}
	s := p.Summary()
	gt.Value(t, s["id"]).Equal("p1")
	gt.Value(t, s["similarity"]).Equal(0.7)
	_, hasImage := s["image_url"]
	gt.Bool(t, hasImage).False()
}

func TestTokenize(t *testing.T) {
	gt.Value(t, model.Tokenize("Niacinamide 10% + Zinc, zinc!")).Equal([]string{"niacinamide", "10", "zinc"})
	gt.Array(t, model.Tokenize("a + b")).Length(0)
}

func TestProductKeywords(t *testing.T) {
	p := &model.ProductRecord{
		Name:           "Gentle Foam Cleanser",
		Brand:          "Aqua Lab",
		Category:       "cleanser",
		TargetConcerns: []string{"excess_oil"},
		Attributes:     map[string]string{"texture": "foam", "finish": "matte"},
	}
	gt.Value(t, p.Keywords()).Equal([]string{"gentle", "foam", "cleanser", "aqua", "lab", "excess", "oil", "matte"})
}
