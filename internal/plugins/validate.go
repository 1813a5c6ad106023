package plugins

import (
	"fmt"
	"strings"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/validation"
)

// ValidatePlugin checks a plugin's descriptor and verifies that every declared
// capability is backed by its capability interface. It returns a
// *domain.ConfigurationError describing the first problem found.
func ValidatePlugin(p Plugin) error {
	if p == nil {
		return domain.NewConfigurationError("", "plugin is nil")
	}
	var desc Descriptor
	if err := safeCall("", func() error {
		desc = p.Descriptor()
		return nil
	}); err != nil {
		return domain.NewConfigurationError("", fmt.Sprintf("reading descriptor: %v", err))
	}

	if err := validation.Struct(desc); err != nil {
		return domain.NewConfigurationError(desc.ID, err.Error())
	}
	if desc.Auth.Required && strings.TrimSpace(desc.Auth.CredentialKey) == "" {
		return domain.NewConfigurationError(desc.ID, "auth required but no credential key declared")
	}

	for _, capability := range desc.Capabilities.List() {
		if !implements(p, capability) {
			return domain.NewConfigurationError(desc.ID,
				fmt.Sprintf("declares %s capability without implementing it", capability))
		}
	}
	return nil
}

func implements(p Plugin, capability Capability) bool {
	var ok bool
	switch capability {
	case CapSearch:
		_, ok = p.(Searcher)
	case CapLookup:
		_, ok = p.(RecordGetter)
	case CapReferences:
		_, ok = p.(ReferenceLister)
	case CapCitations:
		_, ok = p.(CitationLister)
	case CapPDFDownload:
		_, ok = p.(PDFSourceFinder)
	case CapBibtex:
		_, ok = p.(BibtexExporter)
	case CapMetadata:
		_, ok = p.(BatchGetter)
	}
	return ok
}
