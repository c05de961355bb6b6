// Package registry maps instrument keys to the symbols each provider knows them by.
package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/utils"
)

// supportedSchema is the range of registry file versions this package understands.
const supportedSchema = "^1"

// Asset describes one instrument.
type Asset struct {
	Key  string `yaml:"key" json:"key" validate:"required" jsonschema:"description=Stable instrument key used across providers"`
	Kind string `yaml:"kind" json:"kind" validate:"required" jsonschema:"description=Asset class such as equity or etf or crypto"`
	Name string `yaml:"name" json:"name" jsonschema:"description=Human readable name"`
	// Identifiers maps a provider name to the symbol that provider uses.
	Identifiers map[string]string `yaml:"identifiers" json:"identifiers" validate:"dive,keys,required,endkeys,required"`
}

// File is the on-disk registry document.
type File struct {
	SchemaVersion string  `yaml:"schema_version,omitempty" json:"schema_version,omitempty" jsonschema:"description=Registry format version"`
	Assets        []Asset `yaml:"assets" json:"assets" validate:"dive"`
}

// Registry is an immutable index of assets. It is safe for concurrent use.
type Registry struct {
	assets []Asset
	byKey  map[string]Asset
}

// Load reads and validates a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read registry %q", path)
	}

	return Parse(data)
}

// Parse decodes a registry document.
func Parse(data []byte) (*Registry, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse registry", err)
	}

	if file.SchemaVersion != "" {
		if err := checkSchemaVersion(file.SchemaVersion); err != nil {
			return nil, err
		}
	}

	return New(file.Assets)
}

func checkSchemaVersion(raw string) error {
	version, err := semver.NewVersion(raw)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid registry schema_version %q", raw)
	}

	constraint, err := semver.NewConstraint(supportedSchema)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidVersion, "invalid schema constraint", err)
	}

	if !constraint.Check(version) {
		return errors.Newf(errors.ErrCodeInvalidVersion, "registry schema_version %s does not satisfy %s", version, supportedSchema)
	}

	return nil
}

// New builds a registry from assets. Keys must be unique.
func New(assets []Asset) (*Registry, error) {
	validate := validator.New()

	r := &Registry{
		assets: make([]Asset, 0, len(assets)),
		byKey:  make(map[string]Asset, len(assets)),
	}

	for i, asset := range assets {
		if err := validate.Struct(asset); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid asset at index %d", i)
		}

		if _, dup := r.byKey[asset.Key]; dup {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "duplicate asset key %q", asset.Key)
		}

		identifiers := make(map[string]string, len(asset.Identifiers))
		for provider, symbol := range asset.Identifiers {
			identifiers[provider] = symbol
		}

		asset.Identifiers = identifiers
		r.assets = append(r.assets, asset)
		r.byKey[asset.Key] = asset
	}

	return r, nil
}

// Get returns the asset for key.
func (r *Registry) Get(key string) (Asset, bool) {
	asset, ok := r.byKey[key]

	return asset, ok
}

// Resolve returns the provider-specific symbol for an instrument.
// ok is false when the instrument is unknown or has no symbol for that provider.
func (r *Registry) Resolve(key, provider string) (string, bool) {
	asset, ok := r.byKey[key]
	if !ok {
		return "", false
	}

	symbol, ok := asset.Identifiers[provider]

	return symbol, ok
}

// Has reports whether Resolve would succeed.
func (r *Registry) Has(key, provider string) bool {
	_, ok := r.Resolve(key, provider)

	return ok
}

// Identifier is Resolve with a descriptive error listing the providers the asset does have.
func (r *Registry) Identifier(key, provider string) (string, error) {
	asset, ok := r.byKey[key]
	if !ok {
		return "", errors.Newf(errors.ErrCodeDataNotFound, "unknown asset key: %s", key)
	}

	symbol, ok := asset.Identifiers[provider]
	if !ok {
		available := make([]string, 0, len(asset.Identifiers))
		for p := range asset.Identifiers {
			available = append(available, p)
		}

		sort.Strings(available)

		return "", errors.Newf(errors.ErrCodeDataNotFound, "asset %q has no identifier %q. Available: %s", key, provider, strings.Join(available, ", "))
	}

	return symbol, nil
}

// Keys returns every instrument key in file order.
func (r *Registry) Keys() []string {
	return r.ListUniverse()
}

// ListUniverse returns the instrument keys whose kind is one of kinds, in file order.
// With no kinds every key is returned.
func (r *Registry) ListUniverse(kinds ...string) []string {
	wanted := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}

	keys := make([]string, 0, len(r.assets))

	for _, asset := range r.assets {
		if len(wanted) > 0 && !wanted[asset.Kind] {
			continue
		}

		keys = append(keys, asset.Key)
	}

	return keys
}

// Len returns the number of assets.
func (r *Registry) Len() int {
	return len(r.assets)
}

// Schema returns the JSON schema of the registry file format.
func Schema() (string, error) {
	//nolint:exhaustruct // Empty struct is intentional for schema generation
	schema, err := utils.GetSchemaFromConfig(File{})
	if err != nil {
		return "", fmt.Errorf("failed to generate registry schema: %w", err)
	}

	return schema, nil
}
