// Package simd provides the scalar vector-arithmetic kernels the distance
// package builds its metrics from: dot product, squared L2, Hamming
// distance, and the scale/sqrt primitives used by L2 normalization.
//
// Earlier revisions dispatched to hand-written AVX/NEON assembly behind
// runtime CPU feature detection; that machinery existed to serve
// quantized-codec kernels (PQ, SQ8, INT4) this package no longer exposes,
// so it was dropped along with them rather than kept pointed at four
// scalar loops. The Go compiler autovectorizes simple reduction loops like
// these reasonably well on both amd64 and arm64.
package simd
