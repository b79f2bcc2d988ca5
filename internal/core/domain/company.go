package domain

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Company struct {
	ID          int64     `json:"id"`
	Name        string    `json:"nomeEmpresa"`
	SenderAlias string    `json:"remetente,omitempty"`
	LogoRef     string    `json:"logo,omitempty"`
	Email       string    `json:"email,omitempty"`
	Status      string    `json:"statusEmpresa,omitempty"`
	Situation   string    `json:"situacao,omitempty"`
	Message     string    `json:"mensagem,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewCompany carries the caller-supplied fields of a company; id and creation
// time are assigned by the manager.
type NewCompany struct {
	Name        string
	SenderAlias string
	LogoRef     string
	Email       string
	Status      string
	Situation   string
	Message     string
}

func (c NewCompany) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("nomeEmpresa", "name is required")
	}
	return nil
}

// CompanyStatusPatch edits the free-text annotations of a company. Nil fields
// are left untouched.
type CompanyStatusPatch struct {
	Status    *string
	Situation *string
	Message   *string
}

func (p CompanyStatusPatch) Empty() bool {
	return p.Status == nil && p.Situation == nil && p.Message == nil
}

func (p CompanyStatusPatch) Apply(c *Company) {
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Situation != nil {
		c.Situation = *p.Situation
	}
	if p.Message != nil {
		c.Message = *p.Message
	}
}

// MatchesName compares company names the way operators type them: trimmed,
// case-insensitive and ignoring accents, so "Conexão" matches "CONEXAO".
func (c Company) MatchesName(name string) bool {
	return sameName(c.Name, name)
}

// MatchesAlias applies the same comparison to the sender alias.
func (c Company) MatchesAlias(name string) bool {
	return c.SenderAlias != "" && sameName(c.SenderAlias, name)
}

func sameName(a, b string) bool {
	return FoldName(a) == FoldName(b)
}

// FoldName is the key company names are compared by.
func FoldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	folded, _, err := transform.String(t, strings.Join(strings.Fields(name), " "))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(name))
	}
	return folded
}
