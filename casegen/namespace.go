package casegen

import "github.com/inovex/illuminatio-go/host"

// Namespace is the minimal namespace-catalog entry the generator needs
// to resolve GenericClusterHost namespace-label selectors and to look
// up the concrete labels of a named namespace (spec §4.2 step 3a).
type Namespace struct {
	Name   string
	Labels host.Labels
}

// Catalog is the live namespace snapshot passed into Generate.
type Catalog struct {
	namespaces []Namespace
}

// NewCatalog builds a Catalog from a namespace list.
func NewCatalog(namespaces []Namespace) Catalog {
	return Catalog{namespaces: namespaces}
}

// LabelsOf returns the labels of the named namespace, if known.
func (c Catalog) LabelsOf(name string) (host.Labels, bool) {
	for _, ns := range c.namespaces {
		if ns.Name == name {
			return ns.Labels, true
		}
	}
	return nil, false
}

// NamesMatchingLabels returns the names of every namespace whose
// labels are a superset of sel.
func (c Catalog) NamesMatchingLabels(sel host.Labels) []string {
	var names []string
	for _, ns := range c.namespaces {
		if labelsSubset(sel, ns.Labels) {
			names = append(names, ns.Name)
		}
	}
	return names
}

func labelsSubset(want, have host.Labels) bool {
	for k, v := range want {
		if hv, ok := have[k]; !ok || hv != v {
			return false
		}
	}
	return true
}
