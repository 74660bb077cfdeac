// pkg/qc/detector.go
package qc

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/medsendx/data-gateway/pkg/model"
)

// maxIterations caps Lloyd's algorithm. Non-convergence within the cap
// is not an error; the best assignment found so far is returned.
const maxIterations = 100

// ClusterAssignment maps each record to its cluster and identifies the
// outlier cluster for fleet QC alerting.
type ClusterAssignment struct {
	// Labels maps record identifier to cluster label in [0, k).
	Labels map[string]int
	// OutlierLabel is the label of the minority cluster when k = 2,
	// or -1 when no outlier designation applies.
	OutlierLabel int
	// Centroids holds the final (avgDensity, contrast) centre of each
	// cluster.
	Centroids [][2]float64
	// Populations holds the member count of each cluster.
	Populations []int
	// Silhouette is the mean silhouette score over the clustering
	// plane; NaN when it is undefined (n <= k or k < 2).
	Silhouette float64
	// Converged reports whether assignments stabilised before the
	// iteration cap.
	Converged bool
}

// IsOutlier reports whether the record was assigned to the outlier
// cluster. Unknown records are never outliers.
func (a *ClusterAssignment) IsOutlier(recordID string) bool {
	if a.OutlierLabel < 0 {
		return false
	}
	label, ok := a.Labels[recordID]
	return ok && label == a.OutlierLabel
}

// Detector clusters feature vectors to surface scanners whose output
// differs markedly from the rest of the fleet. Clustering runs on the
// (avgDensity, contrast) plane only — peak intensity is informational,
// matching the two QC axes used in fleet practice.
type Detector struct {
	logger *zap.Logger
}

// NewDetector creates a new Detector
func NewDetector(logger *zap.Logger) (*Detector, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Detector{logger: logger}, nil
}

// Detect runs Lloyd's k-means over the feature vectors and labels the
// minority cluster as the outlier when k = 2.
//
// Seeding is deterministic farthest-first: centroid 0 is the first
// vector, and each subsequent centroid is the vector farthest from its
// nearest already-chosen centroid (lowest index wins ties). Repeated
// calls on the same input always produce the same assignment.
func (d *Detector) Detect(vectors []model.FeatureVector, k int) (*ClusterAssignment, error) {
	if k < 1 {
		return nil, fmt.Errorf("nClusters must be at least 1, got %d", k)
	}
	if len(vectors) < k {
		return nil, fmt.Errorf("need at least %d vectors for %d clusters, got %d: %w",
			k, k, len(vectors), ErrInsufficientData)
	}

	points := make([][2]float64, len(vectors))
	for i, v := range vectors {
		points[i] = [2]float64{v.AvgDensity, v.Contrast}
	}

	centroids := seedCentroids(points, k)
	labels := make([]int, len(points))
	converged := false

	for iter := 0; iter < maxIterations; iter++ {
		changed := false

		// Assignment step: nearest centroid under Euclidean distance,
		// lowest label wins ties.
		for i, p := range points {
			best := 0
			bestDist := distance(p, centroids[0])
			for c := 1; c < k; c++ {
				if dist := distance(p, centroids[c]); dist < bestDist {
					best = c
					bestDist = dist
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		if !changed && iter > 0 {
			converged = true
			break
		}

		// Update step: centroid becomes the mean of its members. An
		// empty cluster keeps its previous centroid.
		sums := make([][2]float64, k)
		counts := make([]int, k)
		for i, p := range points {
			c := labels[i]
			sums[c][0] += p[0]
			sums[c][1] += p[1]
			counts[c]++
		}
		for c := 0; c < k; c++ {
			if counts[c] > 0 {
				centroids[c] = [2]float64{
					sums[c][0] / float64(counts[c]),
					sums[c][1] / float64(counts[c]),
				}
			}
		}
	}

	populations := make([]int, k)
	for _, label := range labels {
		populations[label]++
	}

	assignment := &ClusterAssignment{
		Labels:       make(map[string]int, len(vectors)),
		OutlierLabel: outlierLabel(k, populations, centroids),
		Centroids:    centroids,
		Populations:  populations,
		Silhouette:   silhouette(points, labels, k),
		Converged:    converged,
	}
	for i, v := range vectors {
		assignment.Labels[v.RecordID] = labels[i]
	}

	d.logger.Info("QC clustering complete",
		zap.Int("vectors", len(vectors)),
		zap.Int("k", k),
		zap.Ints("populations", populations),
		zap.Int("outlierLabel", assignment.OutlierLabel),
		zap.Float64("silhouette", assignment.Silhouette),
		zap.Bool("converged", converged))

	return assignment, nil
}

// seedCentroids picks k starting centroids by farthest-first traversal.
func seedCentroids(points [][2]float64, k int) [][2]float64 {
	centroids := make([][2]float64, 0, k)
	centroids = append(centroids, points[0])

	for len(centroids) < k {
		farthest := 0
		farthestDist := -1.0
		for i, p := range points {
			nearest := math.Inf(1)
			for _, c := range centroids {
				if dist := distance(p, c); dist < nearest {
					nearest = dist
				}
			}
			if nearest > farthestDist {
				farthest = i
				farthestDist = nearest
			}
		}
		centroids = append(centroids, points[farthest])
	}

	return centroids
}

// outlierLabel applies the minority-cluster rule for k = 2. On an exact
// population tie, the cluster whose centroid lies farther from the
// origin of the clustering plane is the outlier.
func outlierLabel(k int, populations []int, centroids [][2]float64) int {
	if k != 2 {
		return -1
	}

	switch {
	case populations[0] < populations[1]:
		return 0
	case populations[1] < populations[0]:
		return 1
	default:
		if norm(centroids[0]) > norm(centroids[1]) {
			return 0
		}
		return 1
	}
}

// silhouette computes the mean silhouette score over all points, or
// NaN when the score is undefined. Singleton-cluster points score 0 by
// convention.
func silhouette(points [][2]float64, labels []int, k int) float64 {
	n := len(points)
	if k < 2 || n <= k {
		return math.NaN()
	}

	counts := make([]int, k)
	for _, label := range labels {
		counts[label]++
	}

	total := 0.0
	for i, p := range points {
		// Mean distance to every cluster.
		sums := make([]float64, k)
		for j, q := range points {
			if i == j {
				continue
			}
			sums[labels[j]] += distance(p, q)
		}

		own := labels[i]
		if counts[own] <= 1 {
			continue // singleton scores 0
		}
		a := sums[own] / float64(counts[own]-1)

		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || counts[c] == 0 {
				continue
			}
			if mean := sums[c] / float64(counts[c]); mean < b {
				b = mean
			}
		}

		if max := math.Max(a, b); max > 0 {
			total += (b - a) / max
		}
	}

	return total / float64(n)
}

func distance(a, b [2]float64) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

func norm(p [2]float64) float64 {
	return math.Hypot(p[0], p[1])
}
