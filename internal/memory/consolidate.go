package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/toolline/agent-memory/pkg/types"
)

const mergedSentenceCap = 5

// Similarity computes lexical overlap between two entries as a weighted
// Jaccard over title words, keywords and content words longer than
// three characters. No semantic similarity is attempted.
func Similarity(a, b types.MemoryEntry) float64 {
	title := jaccard(uniqueTokens(a.Title, 0), uniqueTokens(b.Title, 0))
	keywords := jaccard(stringSet(a.Keywords), stringSet(b.Keywords))
	content := jaccard(uniqueTokens(a.Content, 3), uniqueTokens(b.Content, 3))
	return 0.4*title + 0.3*keywords + 0.3*content
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func stringSet(ss []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	delete(set, "")
	return set
}

// ConsolidationOptions tunes duplicate clustering.
type ConsolidationOptions struct {
	MinSimilarity float64
	SameTypeOnly  bool
	SameBrandOnly bool
}

// DefaultConsolidationOptions mirrors the maintenance defaults.
func DefaultConsolidationOptions() ConsolidationOptions {
	return ConsolidationOptions{MinSimilarity: 0.7, SameTypeOnly: true, SameBrandOnly: true}
}

// FindConsolidationCandidates clusters near-duplicate live entries with
// a greedy single pass: each entry seeds at most one cluster, and no
// entry appears in two clusters. Cluster members are ordered with the
// designated survivor first. Reads do not perturb usage statistics.
func (s *Service) FindConsolidationCandidates(ctx context.Context, opts ConsolidationOptions) ([]types.ConsolidationCluster, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return findClusters(doc.Entries, opts, time.Now().UTC()), nil
}

func findClusters(entries []types.MemoryEntry, opts ConsolidationOptions, now time.Time) []types.ConsolidationCluster {
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = 0.7
	}

	live := make([]types.MemoryEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Expired(now) {
			live = append(live, e)
		}
	}

	processed := map[string]struct{}{}
	var clusters []types.ConsolidationCluster

	for i, seed := range live {
		if _, done := processed[seed.ID]; done {
			continue
		}
		members := []types.MemoryEntry{seed}
		for _, other := range live[i+1:] {
			if _, done := processed[other.ID]; done {
				continue
			}
			if opts.SameTypeOnly && other.Type != seed.Type {
				continue
			}
			if opts.SameBrandOnly && !brandsCompatible(seed.TargetBrands, other.TargetBrands) {
				continue
			}
			if Similarity(seed, other) >= opts.MinSimilarity {
				members = append(members, other)
			}
		}
		if len(members) < 2 {
			continue
		}
		for _, m := range members {
			processed[m.ID] = struct{}{}
		}

		sortSurvivorFirst(members)
		clusters = append(clusters, types.ConsolidationCluster{
			Entries:    members,
			Similarity: meanPairwiseSimilarity(members),
		})
	}
	return clusters
}

// brandsCompatible treats two entries as same-brand when both are
// unscoped or they share at least one target brand.
func brandsCompatible(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

// sortSurvivorFirst orders members by priority, breaking ties with the
// most recent update. The merge keeps the first member.
func sortSurvivorFirst(members []types.MemoryEntry) {
	sort.SliceStable(members, func(i, j int) bool {
		wi, wj := priorityWeight(members[i].Priority), priorityWeight(members[j].Priority)
		if wi != wj {
			return wi > wj
		}
		return members[i].UpdatedAt.After(members[j].UpdatedAt)
	})
}

func meanPairwiseSimilarity(members []types.MemoryEntry) float64 {
	pairs, sum := 0, 0.0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += Similarity(members[i], members[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// mergeCluster builds the merged content and keyword set for a cluster.
// Content is the first five unique sentences across all members in
// survivor-first order; keywords are the deduplicated union capped at
// ten.
func mergeCluster(members []types.MemoryEntry) (content string, keywords []string) {
	seen := map[string]struct{}{}
	var sentences []string
	for _, m := range members {
		for _, sentence := range splitSentences(m.Content) {
			norm := strings.ToLower(strings.Join(strings.Fields(sentence), " "))
			if _, dup := seen[norm]; dup {
				continue
			}
			seen[norm] = struct{}{}
			sentences = append(sentences, sentence)
			if len(sentences) >= mergedSentenceCap {
				break
			}
		}
		if len(sentences) >= mergedSentenceCap {
			break
		}
	}
	content = strings.Join(sentences, ". ")
	if content != "" && !strings.HasSuffix(content, ".") {
		content += "."
	}

	kwSeen := map[string]struct{}{}
	for _, m := range members {
		for _, kw := range m.Keywords {
			norm := strings.ToLower(strings.TrimSpace(kw))
			if norm == "" {
				continue
			}
			if _, dup := kwSeen[norm]; dup {
				continue
			}
			kwSeen[norm] = struct{}{}
			keywords = append(keywords, norm)
			if len(keywords) >= maxAutoKeywords {
				return content, keywords
			}
		}
	}
	return content, keywords
}

func splitSentences(text string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ExecuteConsolidation merges each cluster into its survivor and
// deletes the losing members. Irreversible. Returns merged cluster and
// removed entry counts.
func (s *Service) ExecuteConsolidation(ctx context.Context, clusters []types.ConsolidationCluster) (merged, removed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return 0, 0, err
	}

	merged, removed = consolidateDocument(&doc, clusters, time.Now().UTC())
	if merged == 0 {
		return 0, 0, nil
	}
	if err := s.store.Save(ctx, doc); err != nil {
		return 0, 0, err
	}
	s.logger.Info("consolidation executed", "clusters", merged, "removed", removed)
	return merged, removed, nil
}

func consolidateDocument(doc *types.MemoryDocument, clusters []types.ConsolidationCluster, now time.Time) (merged, removed int) {
	for _, cluster := range clusters {
		if len(cluster.Entries) < 2 {
			continue
		}
		if entryIndex(*doc, cluster.Entries[0].ID) < 0 {
			continue
		}

		content, keywords := mergeCluster(cluster.Entries)
		for _, loser := range cluster.Entries[1:] {
			if idx := entryIndex(*doc, loser.ID); idx >= 0 {
				doc.Entries = append(doc.Entries[:idx], doc.Entries[idx+1:]...)
				removed++
			}
		}

		// Re-resolve after deletions shifted the slice.
		survivor := &doc.Entries[entryIndex(*doc, cluster.Entries[0].ID)]
		survivor.Content = content
		survivor.Keywords = keywords
		survivor.UpdatedAt = now
		merged++
	}
	return merged, removed
}
