package automation

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/jsonc"
)

var storeLog = logrus.WithField("module", "store")

const documentPermissions = 0644

// ReadDocument reads the document at path. Comments and trailing commas are
// accepted so hand-maintained templates can be annotated.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewError(ConfigNotFound, err, "no document at `%s`", path)
		}
		return nil, fmt.Errorf("could not read document `%s`: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("could not parse document `%s`: %w", path, err)
	}
	return &doc, nil
}

// Store persists documents at the location the agent watches.
type Store struct {
	Path      string
	Versioner *Versioner
}

func NewStore(path string, versioner *Versioner) *Store {
	return &Store{Path: path, Versioner: versioner}
}

// Exists reports whether a document has been persisted at the store's path.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.Path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

func (s *Store) Read() (*Document, error) {
	return ReadDocument(s.Path)
}

// Write stamps doc with the next version and replaces the file atomically,
// so the agent never reads a partially written document.
func (s *Store) Write(doc *Document) error {
	doc.Version = s.Versioner.Next()
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("could not serialize document version %d: %w", doc.Version, err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(s.Path, data, documentPermissions); err != nil {
		return fmt.Errorf("could not write document `%s`: %w", s.Path, err)
	}
	storeLog.Debugf("wrote document version %d to `%s`", doc.Version, s.Path)
	return nil
}
