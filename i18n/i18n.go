// Package i18n translates violation codes and page labels.
package i18n

import (
	"context"
	"strings"
)

// DefaultLang is used when nothing else matches.
const DefaultLang = "fr"

type langKey struct{}

// WithLang returns a new context carrying lang.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

// LangFromContext returns the language stored by WithLang, or DefaultLang.
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(langKey{}).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

var messages = map[string]map[string]string{
	"fr": {
		"required":             "Requis",
		"invalid_number":       "Montant invalide",
		"must_not_be_negative": "Le montant doit être positif ou nul",
		"out_of_range":         "Valeur hors limites",
		"invalid_choice":       "Choix invalide",
		"invalid":              "Invalide",
		"invoices":             "Factures",
		"create_invoice":       "Créer une facture",
		"edit_invoice":         "Modifier la facture",
		"customer":             "Client",
		"choose_customer":      "Choisir un client",
		"amount":               "Montant",
		"status":               "Statut",
		"date":                 "Date",
		"pending":              "En attente",
		"paid":                 "Payée",
		"save":                 "Enregistrer",
		"cancel":               "Annuler",
		"delete":               "Supprimer",
		"edit":                 "Modifier",
		"search":               "Rechercher des factures...",
		"no_invoices":          "Aucune facture",
		"page":                 "Page",
		"invoice_not_saved":    "La facture n'a pas pu être enregistrée.",
		"invoice_not_deleted":  "La facture n'a pas pu être supprimée.",
		"invoice_list_failed":  "Les factures n'ont pas pu être chargées.",
		"fix_errors":           "Champs manquants ou invalides.",
	},
	"en": {
		"required":             "Required",
		"invalid_number":       "Invalid amount",
		"must_not_be_negative": "Amount must be zero or more",
		"out_of_range":         "Value out of range",
		"invalid_choice":       "Invalid choice",
		"invalid":              "Invalid",
		"invoices":             "Invoices",
		"create_invoice":       "Create Invoice",
		"edit_invoice":         "Edit Invoice",
		"customer":             "Customer",
		"choose_customer":      "Select a customer",
		"amount":               "Amount",
		"status":               "Status",
		"date":                 "Date",
		"pending":              "Pending",
		"paid":                 "Paid",
		"save":                 "Save",
		"cancel":               "Cancel",
		"delete":               "Delete",
		"edit":                 "Edit",
		"search":               "Search invoices...",
		"no_invoices":          "No invoices",
		"page":                 "Page",
		"invoice_not_saved":    "Database error: the invoice could not be saved.",
		"invoice_not_deleted":  "Database error: the invoice could not be deleted.",
		"invoice_list_failed":  "Database error: the invoices could not be loaded.",
		"fix_errors":           "Missing or invalid fields.",
	},
}

// T translates code into lang, falling back to French and then to the code.
func T(lang, code string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages[DefaultLang][code]; ok {
		return s
	}
	return code
}

// DetectLanguage picks a supported language from an Accept-Language header.
func DetectLanguage(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		base := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if _, ok := messages[base]; ok {
			return base
		}
	}
	return DefaultLang
}

// Supported reports whether lang has a message table.
func Supported(lang string) bool {
	_, ok := messages[lang]
	return ok
}
