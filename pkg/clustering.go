package propagation

import (
	"sort"
)

// ClusterByTimeProximity assigns a cluster id to every timestamp. Sorted
// neighbours closer than scale share a cluster, and a cluster is never closed
// before it holds nMin elements, even across a large gap. Ids are returned in
// the order of data.
func ClusterByTimeProximity(data []int64, scale int64, nMin int) []int64 {
	clusters := make([]int64, len(data))
	if len(data) == 0 {
		return clusters
	}

	idxSort := make([]int, len(data))
	for i := range idxSort {
		idxSort[i] = i
	}
	sort.SliceStable(idxSort, func(i, j int) bool {
		return data[idxSort[i]] < data[idxSort[j]]
	})

	var c int64 = 0
	nCluster := 0
	clusters[idxSort[0]] = c
	for k := 1; k < len(idxSort); k++ {
		gap := data[idxSort[k]] - data[idxSort[k-1]]
		switch {
		case gap <= scale:
			nCluster++
		case nCluster+1 < nMin:
			// cluster too small to be closed yet
			nCluster++
		default:
			c++
			nCluster = 0
		}
		clusters[idxSort[k]] = c
	}
	return clusters
}

// CountClusters returns the number of distinct ids produced by
// ClusterByTimeProximity.
func CountClusters(ids []int64) int {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
