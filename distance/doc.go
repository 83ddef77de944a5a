// Package distance provides the similarity kernel used by vecflat.
//
// The only supported metric is the inner product. Scores are not normalized:
// callers that want cosine similarity must L2-normalize vectors themselves.
//
// # Usage
//
//	score := distance.Dot(a, b)
//
//	scores := make([]float32, rows)
//	distance.DotRows(query, block, scores)
package distance
