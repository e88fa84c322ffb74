package vector

import (
	"math"
	"sort"

	"github.com/convomemory/recall/internal/domain/index"
)

// Cosine 余弦相似度，维度不一致或零向量返回 0
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK 按得分降序保留前 k 个，得分相同按消息 ID 升序
func topK(hits []index.VectorHit, k int) []index.VectorHit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].MessageID < hits[j].MessageID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
