package firestore

import (
	"context"
	"slices"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"google.golang.org/api/iterator"
)

const (
	// distanceField receives the cosine distance of FindNearest results
	distanceField = "vector_distance"

	defaultSimilarityLimit = 10
	// keywordScanLimit bounds documents fetched before filtering and scoring
	keywordScanLimit = 200
)

type catalogRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.CatalogRepository = &catalogRepository{}

func newCatalogRepository(client *firestore.Client) *catalogRepository {
	return &catalogRepository{
		client: client,
	}
}

// productDoc is the Firestore persistence model.
// Embedding is stored as firestore.Vector32 so that FindNearest vector search works;
// Keywords backs array-contains-any keyword lookups.
type productDoc struct {
	ID              string             `firestore:"id"`
	Name            string             `firestore:"name"`
	Brand           string             `firestore:"brand"`
	Price           float64            `firestore:"price"`
	Category        string             `firestore:"category"`
	Description     string             `firestore:"description"`
	ImageURL        string             `firestore:"image_url"`
	Rating          float64            `firestore:"rating"`
	Attributes      map[string]string  `firestore:"attributes"`
	TargetConcerns  []string           `firestore:"target_concerns"`
	TargetSkinTypes []string           `firestore:"target_skin_types"`
	Keywords        []string           `firestore:"keywords"`
	Embedding       firestore.Vector32 `firestore:"embedding,omitempty"`
	UpdatedAt       time.Time          `firestore:"updated_at"`

	// Distance is only populated on FindNearest results
	Distance *float64 `firestore:"vector_distance,omitempty"`
}

func (r *catalogRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, productsCollection))
}

func (r *catalogRepository) toDoc(p *model.ProductRecord) *productDoc {
	skinTypes := make([]string, len(p.TargetSkinTypes))
	for i, st := range p.TargetSkinTypes {
		skinTypes[i] = string(st)
	}

	doc := &productDoc{
		ID:              string(p.ID),
		Name:            p.Name,
		Brand:           p.Brand,
		Price:           p.Price,
		Category:        p.Category,
		Description:     p.Description,
		ImageURL:        p.ImageURL,
		Rating:          p.Rating,
		Attributes:      p.Attributes,
		TargetConcerns:  p.TargetConcerns,
		TargetSkinTypes: skinTypes,
		Keywords:        p.Keywords(),
		UpdatedAt:       p.UpdatedAt,
	}
	if len(p.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(p.Embedding)
	}
	return doc
}

// fromDoc never carries the embedding back; callers only need the descriptive fields
func (r *catalogRepository) fromDoc(doc *productDoc) *model.ProductRecord {
	skinTypes := make([]types.SkinType, len(doc.TargetSkinTypes))
	for i, st := range doc.TargetSkinTypes {
		skinTypes[i] = types.SkinType(st)
	}

	return &model.ProductRecord{
		ID:              types.ProductID(doc.ID),
		Name:            doc.Name,
		Brand:           doc.Brand,
		Price:           doc.Price,
		Category:        doc.Category,
		Description:     doc.Description,
		ImageURL:        doc.ImageURL,
		Rating:          doc.Rating,
		Attributes:      doc.Attributes,
		TargetConcerns:  doc.TargetConcerns,
		TargetSkinTypes: skinTypes,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func (r *catalogRepository) Put(ctx context.Context, products ...*model.ProductRecord) error {
	if len(products) == 0 {
		return nil
	}
	for _, p := range products {
		if err := p.ID.Validate(); err != nil {
			return goerr.Wrap(model.ErrInvalidProduct, "invalid product ID", goerr.V("id", p.ID), goerr.V("reason", err.Error()))
		}
	}

	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	now := time.Now().UTC()
	for _, p := range products {
		doc := r.toDoc(p)
		doc.UpdatedAt = now
		if _, err := bulkWriter.Set(r.collection().Doc(string(p.ID)), doc); err != nil {
			return goerr.Wrap(err, "failed to add Set operation to bulk writer", goerr.V("product_id", p.ID))
		}
	}

	bulkWriter.Flush()
	return nil
}

func (r *catalogRepository) BySimilarity(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*model.ProductRecord, error) {
	if limit <= 0 {
		limit = defaultSimilarityLimit
	}

	// cosine distance is 1 - similarity
	maxDistance := 1 - threshold
	vq := r.collection().FindNearest("embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceThreshold:   &maxDistance,
			DistanceResultField: distanceField,
		})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	products := make([]*model.ProductRecord, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate product vector search results")
		}

		var d productDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal product from vector search", goerr.V("docID", doc.Ref.ID))
		}

		p := r.fromDoc(&d)
		if d.Distance != nil {
			similarity := 1 - *d.Distance
			p.Similarity = &similarity
		}
		products = append(products, p)
	}

	return products, nil
}

func (r *catalogRepository) ByKeyword(ctx context.Context, text string, filter *model.ProductFilter, limit int) ([]*model.ProductRecord, error) {
	tokens := model.Tokenize(text)
	if len(tokens) == 0 {
		return []*model.ProductRecord{}, nil
	}
	if len(tokens) > firestoreContainsAnyLimit {
		tokens = tokens[:firestoreContainsAnyLimit]
	}

	// Filters are applied after the scan so the query needs no composite index.
	iter := r.collection().Where("keywords", "array-contains-any", tokens).
		Limit(keywordScanLimit).Documents(ctx)
	defer iter.Stop()

	type scored struct {
		product *model.ProductRecord
		hits    int
	}

	var candidates []scored
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate keyword search results", goerr.V("text", text))
		}

		var d productDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal product", goerr.V("docID", doc.Ref.ID))
		}

		p := r.fromDoc(&d)
		if !filter.Match(p) {
			continue
		}

		hits := 0
		for _, t := range tokens {
			if slices.Contains(d.Keywords, t) {
				hits++
			}
		}
		candidates = append(candidates, scored{product: p, hits: hits})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.hits != b.hits {
			return a.hits > b.hits
		}
		if a.product.Rating != b.product.Rating {
			return a.product.Rating > b.product.Rating
		}
		return a.product.ID < b.product.ID
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	products := make([]*model.ProductRecord, len(candidates))
	for i, c := range candidates {
		products[i] = c.product
	}
	return products, nil
}

// ByID splits ids into GetAll batches and keeps the requested order. Missing products
// and malformed IDs are skipped.
func (r *catalogRepository) ByID(ctx context.Context, requested []types.ProductID) ([]*model.ProductRecord, error) {
	ids := make([]types.ProductID, 0, len(requested))
	for _, id := range requested {
		if id.Validate() == nil {
			ids = append(ids, id)
		}
	}

	products := make([]*model.ProductRecord, 0, len(ids))

	for i := 0; i < len(ids); i += firestoreGetAllLimit {
		end := min(i+firestoreGetAllLimit, len(ids))
		batch := ids[i:end]

		refs := make([]*firestore.DocumentRef, len(batch))
		for j, id := range batch {
			refs[j] = r.collection().Doc(string(id))
		}

		docs, err := r.client.GetAll(ctx, refs)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to batch get products", goerr.V("count", len(batch)))
		}

		for idx, doc := range docs {
			if !doc.Exists() {
				continue
			}

			var d productDoc
			if err := doc.DataTo(&d); err != nil {
				return nil, goerr.Wrap(err, "failed to unmarshal product", goerr.V("id", batch[idx]))
			}
			products = append(products, r.fromDoc(&d))
		}
	}

	return products, nil
}
