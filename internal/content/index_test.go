package content

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

func year(y int) *int { return &y }

func testCatalog() []domain.CatalogItem {
	return []domain.CatalogItem{
		{ID: 1, Title: "Heat", Genres: "Crime|Thriller", Director: "Michael Mann", Actors: "Al Pacino|Robert De Niro", PlotKeywords: "heist|los angeles", Year: year(1995)},
		{ID: 2, Title: "Collateral", Genres: "Crime|Thriller", Director: "Michael Mann", Actors: "Tom Cruise|Jamie Foxx", PlotKeywords: "hitman|los angeles", Year: year(2004)},
		{ID: 3, Title: "Toy Story", Genres: "Animation|Comedy", Director: "John Lasseter", Actors: "Tom Hanks|Tim Allen", PlotKeywords: "toys|friendship", Year: year(1995)},
		{ID: 4, Title: "Finding Nemo", Genres: "Animation|Comedy", Director: "Andrew Stanton", Actors: "Albert Brooks", PlotKeywords: "ocean|friendship", Year: year(2003)},
		{ID: 5, Title: "The Insider", Genres: "Drama|Thriller", Director: "Michael Mann", Actors: "Al Pacino|Russell Crowe", Year: year(1999)},
	}
}

func TestFeatureSoupWeights(t *testing.T) {
	soup := FeatureSoup(testCatalog()[0])

	if got := strings.Count(soup, "crime"); got != 3 {
		t.Errorf("expected genre repeated 3 times, got %d in %q", got, soup)
	}
	if got := strings.Count(soup, "michael_mann"); got != 2 {
		t.Errorf("expected director repeated 2 times, got %d in %q", got, soup)
	}
	if !strings.Contains(soup, "al_pacino") || !strings.Contains(soup, "robert_de_niro") {
		t.Errorf("expected one token per actor: %q", soup)
	}
	if !strings.Contains(soup, "decade_1990s") {
		t.Errorf("expected decade token: %q", soup)
	}
}

func TestAnalyzeDropsStopWordsAndAddsBigrams(t *testing.T) {
	terms := analyze("the heist in los angeles")

	want := map[string]bool{"heist": true, "los": true, "angeles": true, "heist los": true, "los angeles": true}
	if len(terms) != len(want) {
		t.Fatalf("expected %d terms, got %v", len(want), terms)
	}
	for _, term := range terms {
		if !want[term] {
			t.Errorf("unexpected term %q", term)
		}
	}
}

func TestSimilarItemsRanksSharedFeaturesFirst(t *testing.T) {
	ix := NewIndex(zerolog.Nop(), Options{})
	if err := ix.Build(testCatalog()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !ix.Precomputed() {
		t.Error("small corpus should use the precomputed matrix")
	}

	recs := ix.SimilarItems(1, 2)
	if len(recs) != 2 {
		t.Fatalf("expected 2 results, got %d", len(recs))
	}
	if recs[0].ItemID != 2 && recs[0].ItemID != 5 {
		t.Errorf("expected another Michael Mann film first, got %d", recs[0].ItemID)
	}
	if recs[0].Score < recs[1].Score {
		t.Errorf("results not sorted: %f < %f", recs[0].Score, recs[1].Score)
	}
}

func TestSimilarItemsExcludesQueryAndCapsAtCorpus(t *testing.T) {
	items := testCatalog()
	ix := NewIndex(zerolog.Nop(), Options{})
	if err := ix.Build(items); err != nil {
		t.Fatalf("build: %v", err)
	}

	for _, item := range items {
		recs := ix.SimilarItems(item.ID, 100)
		if len(recs) != len(items)-1 {
			t.Errorf("item %d: expected %d results, got %d", item.ID, len(items)-1, len(recs))
		}
		for _, r := range recs {
			if r.ItemID == item.ID {
				t.Errorf("item %d returned itself", item.ID)
			}
		}
	}

	if recs := ix.SimilarItems(1, 0); recs != nil {
		t.Errorf("n=0 should return nil, got %v", recs)
	}
}

func TestSimilarItemsTiesUseCatalogOrder(t *testing.T) {
	items := []domain.CatalogItem{
		{ID: 10, Genres: "Western"},
		{ID: 30, Genres: "Horror"},
		{ID: 20, Genres: "Horror"},
		{ID: 40, Genres: "Horror"},
	}
	ix := NewIndex(zerolog.Nop(), Options{})
	if err := ix.Build(items); err != nil {
		t.Fatalf("build: %v", err)
	}

	recs := ix.SimilarItems(30, 3)
	if recs[0].ItemID != 20 || recs[1].ItemID != 40 || recs[2].ItemID != 10 {
		t.Errorf("unexpected order: %+v", recs)
	}
}

func TestUnknownItemReturnsEmpty(t *testing.T) {
	ix := NewIndex(zerolog.Nop(), Options{})
	if err := ix.Build(testCatalog()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if recs := ix.SimilarItems(999, 5); len(recs) != 0 {
		t.Errorf("expected no results for unknown item, got %v", recs)
	}
}

func TestOnDemandMatchesPrecomputed(t *testing.T) {
	items := testCatalog()
	pre := NewIndex(zerolog.Nop(), Options{})
	onDemand := NewIndex(zerolog.Nop(), Options{PrecomputeLimit: -1})
	if err := pre.Build(items); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := onDemand.Build(items); err != nil {
		t.Fatalf("build: %v", err)
	}
	if onDemand.Precomputed() {
		t.Fatal("negative limit should disable precomputation")
	}

	for _, item := range items {
		a := pre.SimilarItems(item.ID, 4)
		b := onDemand.SimilarItems(item.ID, 4)
		for i := range a {
			if a[i].ItemID != b[i].ItemID || math.Abs(a[i].Score-b[i].Score) > 1e-6 {
				t.Errorf("item %d rank %d: precomputed %+v, on demand %+v", item.ID, i, a[i], b[i])
			}
		}
	}
}

func TestMaxFeaturesCapsVocabulary(t *testing.T) {
	ix := NewIndex(zerolog.Nop(), Options{MaxFeatures: 3})
	if err := ix.Build(testCatalog()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := len(ix.Vocabulary()); got != 3 {
		t.Errorf("expected 3 terms, got %d", got)
	}
}

func TestBuildEmptyCatalog(t *testing.T) {
	ix := NewIndex(zerolog.Nop(), Options{})
	if err := ix.Build(nil); !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Errorf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestRestoreFromSnapshot(t *testing.T) {
	ix := NewIndex(zerolog.Nop(), Options{})
	if err := ix.Build(testCatalog()); err != nil {
		t.Fatalf("build: %v", err)
	}

	restored, err := Restore(zerolog.Nop(), Options{}, ix.Snapshot())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	a, b := ix.SimilarItems(3, 4), restored.SimilarItems(3, 4)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("rank %d: %+v != %+v", i, a[i], b[i])
		}
	}

	broken := ix.Snapshot()
	broken.IDF = broken.IDF[:1]
	if _, err := Restore(zerolog.Nop(), Options{}, broken); err == nil {
		t.Error("expected error for inconsistent snapshot")
	}
}
