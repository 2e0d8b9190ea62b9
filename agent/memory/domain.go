package memory

import "strings"

// DomainGeneral is used when no keyword matches.
const DomainGeneral = "general"

type domainRule struct {
	domain   string
	keywords []string
}

// 按顺序匹配，先命中者优先
var domainRules = []domainRule{
	{domain: "finance", keywords: []string{"bitcoin", "crypto", "investment", "financial", "money", "stock", "trading"}},
	{domain: "design", keywords: []string{"logo", "design", "image", "visual"}},
	{domain: "programming", keywords: []string{"code", "programming", "development", "software", "bug"}},
	{domain: "research", keywords: []string{"analysis", "research", "study"}},
}

// InferDomain maps free text to a coarse domain label by keyword.
func InferDomain(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range domainRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.domain
			}
		}
	}
	return DomainGeneral
}
