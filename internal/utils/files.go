package utils

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
)

// MaxFileSize is the per-file and total size limit of a site.
const MaxFileSize int64 = 50 * 1024 * 1024

// FileCategory groups supported extensions.
type FileCategory string

const (
	CategoryHTML     FileCategory = "html"
	CategoryStyles   FileCategory = "styles"
	CategoryScripts  FileCategory = "scripts"
	CategoryImages   FileCategory = "images"
	CategoryFonts    FileCategory = "fonts"
	CategoryArchives FileCategory = "archives"
	CategoryOther    FileCategory = "other"
)

var fileCategories = map[string]FileCategory{
	".html":  CategoryHTML,
	".htm":   CategoryHTML,
	".css":   CategoryStyles,
	".js":    CategoryScripts,
	".json":  CategoryScripts,
	".png":   CategoryImages,
	".jpg":   CategoryImages,
	".jpeg":  CategoryImages,
	".gif":   CategoryImages,
	".svg":   CategoryImages,
	".ico":   CategoryImages,
	".woff":  CategoryFonts,
	".woff2": CategoryFonts,
	".ttf":   CategoryFonts,
	".zip":   CategoryArchives,
}

// FileValidation is the result of ValidateFiles. Errors lists every problem found.
type FileValidation struct {
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors,omitempty"`
	TotalSize int64    `json:"total_size"`
}

// Err joins the validation errors, or returns nil for a valid set.
func (v FileValidation) Err() error {
	if v.Valid {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(v.Errors, "; "))
}

// FileExtension returns the lower-cased extension of name including the dot.
func FileExtension(name string) string {
	return strings.ToLower(path.Ext(name))
}

func IsSupportedFile(name string) bool {
	_, ok := fileCategories[FileExtension(name)]
	return ok
}

// CategoryOf returns the category of name, or CategoryOther.
func CategoryOf(name string) FileCategory {
	if category, ok := fileCategories[FileExtension(name)]; ok {
		return category
	}
	return CategoryOther
}

// HasHTMLFile reports whether files contain at least one page.
func HasHTMLFile(files []ipfs.File) bool {
	for _, f := range files {
		if CategoryOf(f.Name) == CategoryHTML {
			return true
		}
	}
	return false
}

// ValidateFiles checks a site before upload: supported extensions, the size
// limits and at least one HTML file.
func ValidateFiles(files []ipfs.File) FileValidation {
	if len(files) == 0 {
		return FileValidation{Errors: []string{"Please select at least one file"}}
	}

	var errs, unsupported, oversized []string
	if !HasHTMLFile(files) {
		errs = append(errs, "At least one HTML file is required")
	}

	var total int64
	for _, f := range files {
		size := int64(len(f.Data))
		total += size
		if !IsSupportedFile(f.Name) {
			unsupported = append(unsupported, f.Name)
		}
		if size > MaxFileSize {
			oversized = append(oversized, f.Name)
		}
	}
	if len(unsupported) > 0 {
		errs = append(errs, "Unsupported file types: "+strings.Join(unsupported, ", "))
	}
	if len(oversized) > 0 {
		errs = append(errs, "Files exceed size limit: "+strings.Join(oversized, ", "))
	}
	if total > MaxFileSize {
		errs = append(errs, fmt.Sprintf("Total file size exceeds %dMB limit", MaxFileSize/(1024*1024)))
	}

	return FileValidation{Valid: len(errs) == 0, Errors: errs, TotalSize: total}
}

// CategorizeFiles groups file names by category.
func CategorizeFiles(files []ipfs.File) map[FileCategory][]string {
	out := make(map[FileCategory][]string)
	for _, f := range files {
		category := CategoryOf(f.Name)
		out[category] = append(out[category], f.Name)
	}
	return out
}

// ExpandArchives replaces every .zip file with its entries. Entries keep their
// paths inside the archive.
func ExpandArchives(files []ipfs.File) ([]ipfs.File, error) {
	var out []ipfs.File
	for _, f := range files {
		if CategoryOf(f.Name) != CategoryArchives {
			out = append(out, f)
			continue
		}
		entries, err := extractZip(f.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		out = append(out, entries...)
	}
	return out, nil
}

func extractZip(data []byte) ([]ipfs.File, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var files []ipfs.File
	var total int64
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := path.Clean(strings.TrimPrefix(entry.Name, "/"))
		if name == "." || name == ".." || strings.HasPrefix(name, "../") {
			return nil, fmt.Errorf("invalid entry name %q", entry.Name)
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(io.LimitReader(rc, MaxFileSize+1))
		rc.Close()
		if err != nil {
			return nil, err
		}
		total += int64(len(content))
		if total > MaxFileSize {
			return nil, fmt.Errorf("archive exceeds %dMB when extracted", MaxFileSize/(1024*1024))
		}
		files = append(files, ipfs.File{Name: name, Data: content})
	}
	return files, nil
}

// ReadSiteDirectory loads every regular file under root. Names are
// slash-separated paths relative to root, in lexical order.
func ReadSiteDirectory(root string) ([]ipfs.File, error) {
	var files []ipfs.File
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, ipfs.File{Name: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
