package model

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/actuallystonmai/movie-recommender/internal/collab"
	"github.com/actuallystonmai/movie-recommender/internal/content"
	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

// ArtifactVersion is bumped whenever the Artifact layout changes. Artifacts
// written with another version are rejected on load.
const ArtifactVersion = 1

var artifactMagic = []byte("HRMA")

var (
	ErrSchemaMismatch  = errors.New("artifact schema mismatch")
	ErrCorruptArtifact = errors.New("corrupt artifact")
)

// Artifact is the persisted form of a trained Hybrid.
type Artifact struct {
	Version              int
	TrainedAt            time.Time
	ContentWeight        float64
	CollaborativeWeight  float64
	Trained              bool
	HasCollaborativeData bool
	Catalog              []domain.CatalogItem
	Content              content.Snapshot
	Collab               *collab.Snapshot
}

// Artifact captures the trained state. It shares memory with h, which is
// fine because a fitted Hybrid is never mutated.
func (h *Hybrid) Artifact() (*Artifact, error) {
	if !h.IsTrained() {
		return nil, domain.ErrNotTrained
	}
	a := &Artifact{
		Version:              ArtifactVersion,
		TrainedAt:            h.trainedAt,
		ContentWeight:        h.opts.ContentWeight,
		CollaborativeWeight:  h.opts.CollaborativeWeight,
		Trained:              h.trained,
		HasCollaborativeData: h.hasCollaborativeData,
		Catalog:              h.catalog,
		Content:              h.content.Snapshot(),
	}
	if h.hasCollaborativeData {
		s := h.collab.Snapshot()
		a.Collab = &s
	}
	return a, nil
}

// FromArtifact validates an artifact and rebuilds a servable Hybrid.
func FromArtifact(logger zerolog.Logger, opts Options, a *Artifact) (*Hybrid, error) {
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrSchemaMismatch, a.Version, ArtifactVersion)
	}
	if !a.Trained {
		return nil, fmt.Errorf("%w: artifact is not marked trained", ErrCorruptArtifact)
	}
	if a.ContentWeight < 0 || a.CollaborativeWeight < 0 {
		return nil, fmt.Errorf("%w: negative blend weights", ErrCorruptArtifact)
	}
	if a.HasCollaborativeData != (a.Collab != nil) {
		return nil, fmt.Errorf("%w: collaborative flag disagrees with payload", ErrCorruptArtifact)
	}

	opts.ContentWeight = a.ContentWeight
	opts.CollaborativeWeight = a.CollaborativeWeight
	h := NewHybrid(logger, opts)
	h.setCatalog(a.Catalog)

	if len(a.Content.ItemIDs) != len(a.Catalog) {
		return nil, fmt.Errorf("%w: %d indexed items for %d catalog rows", ErrCorruptArtifact, len(a.Content.ItemIDs), len(a.Catalog))
	}
	for i, id := range a.Content.ItemIDs {
		if a.Catalog[i].ID != id {
			return nil, fmt.Errorf("%w: content vector %d belongs to item %d, catalog has %d", ErrCorruptArtifact, i, id, a.Catalog[i].ID)
		}
	}
	idx, err := content.Restore(h.logger, opts.Content, a.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	h.content = idx

	if a.Collab != nil {
		for _, id := range a.Collab.ItemIDs {
			if !idx.Contains(id) {
				return nil, fmt.Errorf("%w: factor item %d has no content vector", ErrCorruptArtifact, id)
			}
		}
		f, err := collab.Restore(h.logger, *a.Collab)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
		}
		h.collab = f
		h.hasCollaborativeData = true
	}

	h.trained = true
	h.trainedAt = a.TrainedAt
	return h, nil
}

// EncodeArtifact writes the magic header followed by a zstd-compressed gob
// stream.
func EncodeArtifact(w io.Writer, a *Artifact) error {
	if _, err := w.Write(artifactMagic); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create compressor: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(a); err != nil {
		zw.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush compressor: %w", err)
	}
	return nil
}

// DecodeArtifact reads an artifact written by EncodeArtifact.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	br := bufio.NewReader(r)
	header := make([]byte, len(artifactMagic))
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorruptArtifact, err)
	}
	if !bytes.Equal(header, artifactMagic) {
		return nil, fmt.Errorf("%w: unknown header %q", ErrSchemaMismatch, header)
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	defer zr.Close()

	var a Artifact
	if err := gob.NewDecoder(zr).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCorruptArtifact, err)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrSchemaMismatch, a.Version, ArtifactVersion)
	}
	return &a, nil
}
