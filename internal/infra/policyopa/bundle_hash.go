package policyopa

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lineage/internal/infra/hashing"
)

type policyFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// PolicyHashFromPath digests every .rego and data.json file under path so
// the loaded edge policy can be identified in logs.
func PolicyHashFromPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return hashFiles([]policyFile{{Path: filepath.Base(path), SHA256: hashing.SHA256Hex(data)}})
	}
	return PolicyHashFromFS(os.DirFS(path))
}

func PolicyHashFromFS(fsys fs.FS) (string, error) {
	var files []policyFile
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == "." {
			return nil
		}
		base := filepath.Base(path)
		if d.IsDir() {
			if strings.HasPrefix(base, ".") || base == "vendor" {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(base, ".") || !(strings.HasSuffix(base, ".rego") || base == "data.json") {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		files = append(files, policyFile{Path: filepath.ToSlash(path), SHA256: hashing.SHA256Hex(data)})
		return nil
	})
	if err != nil {
		return "", err
	}
	return hashFiles(files)
}

func hashFiles(files []policyFile) (string, error) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	payload, err := json.Marshal(struct {
		Files []policyFile `json:"files"`
	}{Files: files})
	if err != nil {
		return "", err
	}
	return hashing.SHA256Hex(payload), nil
}
