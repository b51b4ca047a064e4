// Package similarity computes pairwise similarity matrices over embedding vectors.
//
// Cosine builds the full matrix with a single dense matrix product:
//
//	m, err := similarity.Matrix(similarity.Cosine, vectors)
//	// m[i][j] is the cosine similarity of vectors[i] and vectors[j]
//
// Any Func with the same shape can be swapped in. Zero-norm rows yield NaN,
// which the clusterer treats as "no usable similarity".
package similarity
