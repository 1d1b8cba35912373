// Package subject discovers test subjects on disk and validates their
// metadata. A subject is a directory under the data root holding an
// avatar.json file and up to four photographs.
package subject

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// MetadataFile is the per-subject metadata file name.
const MetadataFile = "avatar.json"

// MaxImages is the most photographs the fitting API accepts per avatar.
const MaxImages = 4

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Metadata mirrors avatar.json. Weight is optional; UploadOrder, when
// set, fixes the image upload sequence; AvatarID is written back after
// the server assigns one.
type Metadata struct {
	Gender      Gender   `json:"gender"`
	Height      float64  `json:"height"`
	Weight      *float64 `json:"weight,omitempty"`
	UploadOrder []string `json:"upload_order,omitempty"`
	AvatarID    string   `json:"avatar_id,omitempty"`
}

// rawMetadata is the unvalidated on-disk form.
type rawMetadata struct {
	Gender      string   `json:"gender"`
	Height      *float64 `json:"height"`
	Weight      *float64 `json:"weight"`
	UploadOrder []string `json:"upload_order"`
	AvatarID    string   `json:"avatar_id"`
}

// Subject is a validated subject ready for upload or download.
type Subject struct {
	Name     string
	Dir      string
	Metadata Metadata
	// Images holds absolute-ordered image paths: the explicit
	// upload_order when present, file-system enumeration order otherwise.
	Images []string
}

// ValidationError marks a single subject as unusable without aborting
// the surrounding scan.
type ValidationError struct {
	Subject string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("subject %s: %s", e.Subject, e.Reason)
}

// Discover enumerates subject directories under dataDir. Directories
// without an avatar.json are ignored; directories whose metadata fails
// validation are excluded and reported in skipped. The scan itself only
// fails when dataDir cannot be read.
func Discover(dataDir string) (subjects []*Subject, skipped []*ValidationError, err error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("read data dir %s: %w", dataDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		metaPath := filepath.Join(dataDir, entry.Name(), MetadataFile)
		if _, statErr := os.Stat(metaPath); statErr != nil {
			continue
		}
		subj, loadErr := Load(dataDir, entry.Name())
		if loadErr != nil {
			var verr *ValidationError
			if errors.As(loadErr, &verr) {
				skipped = append(skipped, verr)
				continue
			}
			return nil, nil, loadErr
		}
		subjects = append(subjects, subj)
	}

	sort.Slice(subjects, func(i, j int) bool {
		return strings.ToLower(subjects[i].Name) < strings.ToLower(subjects[j].Name)
	})
	return subjects, skipped, nil
}

// Load reads and validates a single subject directory.
func Load(dataDir, name string) (*Subject, error) {
	dir := filepath.Join(dataDir, name)
	content, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, &ValidationError{Subject: name, Reason: fmt.Sprintf("read %s: %v", MetadataFile, err)}
	}

	var raw rawMetadata
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, &ValidationError{Subject: name, Reason: fmt.Sprintf("malformed %s: %v", MetadataFile, err)}
	}

	gender, err := ParseGender(raw.Gender)
	if err != nil {
		return nil, &ValidationError{Subject: name, Reason: err.Error()}
	}
	if raw.Height == nil {
		return nil, &ValidationError{Subject: name, Reason: "missing required height"}
	}
	if *raw.Height <= 0 {
		return nil, &ValidationError{Subject: name, Reason: fmt.Sprintf("height must be positive, got %v", *raw.Height)}
	}
	if raw.Weight != nil && *raw.Weight <= 0 {
		return nil, &ValidationError{Subject: name, Reason: fmt.Sprintf("weight must be positive, got %v", *raw.Weight)}
	}

	found, err := listImages(dir)
	if err != nil {
		return nil, &ValidationError{Subject: name, Reason: err.Error()}
	}

	images, err := orderImages(dir, found, raw.UploadOrder)
	if err != nil {
		return nil, &ValidationError{Subject: name, Reason: err.Error()}
	}

	return &Subject{
		Name: name,
		Dir:  dir,
		Metadata: Metadata{
			Gender:      gender,
			Height:      *raw.Height,
			Weight:      raw.Weight,
			UploadOrder: raw.UploadOrder,
			AvatarID:    raw.AvatarID,
		},
		Images: images,
	}, nil
}

// listImages returns image file names in file-system enumeration order.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read subject dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// orderImages applies the explicit upload order when present, otherwise
// keeps enumeration order, capping the result at MaxImages.
func orderImages(dir string, found []string, order []string) ([]string, error) {
	if len(order) == 0 {
		if len(found) > MaxImages {
			found = found[:MaxImages]
		}
		paths := make([]string, 0, len(found))
		for _, name := range found {
			paths = append(paths, filepath.Join(dir, name))
		}
		return paths, nil
	}

	if len(order) > MaxImages {
		return nil, fmt.Errorf("upload_order lists %d images, at most %d allowed", len(order), MaxImages)
	}
	known := make(map[string]bool, len(found))
	for _, name := range found {
		known[name] = true
	}
	paths := make([]string, 0, len(order))
	for _, name := range order {
		if !known[name] {
			return nil, fmt.Errorf("upload_order references missing image %q", name)
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}

// SaveMetadata writes the subject's metadata back to avatar.json,
// preserving the original's 2-space indentation.
func (s *Subject) SaveMetadata() error {
	data, err := json.MarshalIndent(s.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", MetadataFile, err)
	}
	path := filepath.Join(s.Dir, MetadataFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ImageNames returns the ordered base names of the subject's images.
func (s *Subject) ImageNames() []string {
	names := make([]string, 0, len(s.Images))
	for _, path := range s.Images {
		names = append(names, filepath.Base(path))
	}
	return names
}
