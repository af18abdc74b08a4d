package models

import "time"

// DocumentInfo describes one downloaded filing under the asset directory.
type DocumentInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Modified  time.Time `json:"modified"`
	Pages     *int      `json:"pages,omitempty"`
}

// StorageUsage summarizes the asset directory.
type StorageUsage struct {
	Directory  string `json:"directory"`
	Files      int    `json:"files"`
	TotalBytes int64  `json:"total_bytes"`
}

// TotalMB is TotalBytes in mebibytes.
func (u StorageUsage) TotalMB() float64 {
	return float64(u.TotalBytes) / (1024 * 1024)
}
