// Package documents copies customer files into the PDM and estimating
// folders and files each copy under its document group
package documents

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/services"
)

// Layout locates the per-customer document folders
type Layout struct {
	PDMRoot         string
	EstimatingRoot  string
	RestrictedDir   string
	UnrestrictedDir string
}

func (l Layout) access(restricted bool) string {
	if restricted {
		return l.RestrictedDir
	}
	return l.UnrestrictedDir
}

// ErrUnsafeFolderName marks a sheet or request value that cannot be used as a
// single folder name under the document roots
var ErrUnsafeFolderName = errors.New("unsafe folder name")

// PartDir is where the files of one part are kept
func (l Layout) PartDir(restricted bool, customer string, pn entities.PartNumber) (string, error) {
	if err := checkFolderNames(customer, string(pn)); err != nil {
		return "", err
	}
	return filepath.Join(l.PDMRoot, l.access(restricted), customer, string(pn)), nil
}

// EstimatingDir is where the estimation files of one RFQ are kept
func (l Layout) EstimatingDir(restricted bool, customer, rfqNumber string) (string, error) {
	if err := checkFolderNames(customer, rfqNumber); err != nil {
		return "", err
	}
	return filepath.Join(l.EstimatingRoot, l.access(restricted), customer, rfqNumber), nil
}

// checkFolderNames rejects names that would leave their parent folder
func checkFolderNames(names ...string) error {
	for _, name := range names {
		switch {
		case strings.TrimSpace(name) == "", name == ".", name == "..":
			return fmt.Errorf("%w: %q", ErrUnsafeFolderName, name)
		case strings.ContainsAny(name, `/\`), filepath.VolumeName(name) != "":
			return fmt.Errorf("%w: %q contains a path separator", ErrUnsafeFolderName, name)
		}
	}
	return nil
}

// ValidateSources rejects files that already live in a managed folder
func (l Layout) ValidateSources(paths []string) error {
	var managed []string
	for _, p := range paths {
		if strings.Contains(p, "PDM") || strings.Contains(p, "Estimating") ||
			within(p, l.PDMRoot) || within(p, l.EstimatingRoot) {
			managed = append(managed, p)
		}
	}
	if len(managed) > 0 {
		return fmt.Errorf("files from the PDM and Estimating folders cannot be uploaded: %s", strings.Join(managed, ", "))
	}
	return nil
}

func within(path, root string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Transferer copies files into destination folders
type Transferer struct {
	logger *zap.Logger
}

func NewTransferer(logger *zap.Logger) *Transferer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transferer{logger: logger.Named("documents")}
}

// TransferAndCategorize copies every file into dest, creating it when
// missing, and categorizes each copied path. Results keep the input order.
func (t *Transferer) TransferAndCategorize(files []string, dest string) ([]entities.CategorizedFile, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document folder %s: %w", dest, err)
	}

	out := make([]entities.CategorizedFile, 0, len(files))
	for _, src := range files {
		copied, err := copyInto(dest, src)
		if err != nil {
			return nil, err
		}
		group := services.CategorizeDocument(copied)
		t.logger.Debug("document transferred",
			zap.String("source", src),
			zap.String("path", copied),
			zap.String("group", group.String()))
		out = append(out, entities.CategorizedFile{Path: copied, Group: group})
	}
	return out, nil
}

func copyInto(dir, src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open document %s: %w", src, err)
	}
	defer in.Close()

	dst := filepath.Join(dir, filepath.Base(src))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create document %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to copy document %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write document %s: %w", dst, err)
	}
	return dst, nil
}

// MatchingPart returns the files whose path contains the part number
func MatchingPart(files []entities.CategorizedFile, pn entities.PartNumber) []entities.CategorizedFile {
	var out []entities.CategorizedFile
	for _, f := range files {
		if strings.Contains(f.Path, string(pn)) {
			out = append(out, f)
		}
	}
	return out
}
