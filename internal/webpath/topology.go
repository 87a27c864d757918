package webpath

import "regexp"

// Requirement is the kind of web location an app package needs.
type Requirement string

const (
	RequirementNone          Requirement = ""
	RequirementDomainAndPath Requirement = "domain_and_path"
	RequirementFullDomain    Requirement = "full_domain"
	RequirementAmbiguous     Requirement = "?"
)

var (
	rootPathAssignment = regexp.MustCompile(`\npath(_url)?=["']?/["']?`)
	webpathRegister    = regexp.MustCompile(`ynh_webpath_register`)
)

// GuessRequirement derives the location requirement from the number of
// domain and path install questions. A single domain question with no path
// question is a full-domain app only when the install script pins its path
// to "/" and registers it.
func GuessRequirement(domainQuestions, pathQuestions int, installScript []byte) Requirement {
	switch {
	case domainQuestions == 0 && pathQuestions == 0:
		return RequirementNone
	case domainQuestions == 1 && pathQuestions == 1:
		return RequirementDomainAndPath
	case domainQuestions == 1 && pathQuestions == 0:
		if rootPathAssignment.Match(installScript) && webpathRegister.Match(installScript) {
			return RequirementFullDomain
		}
	}
	return RequirementAmbiguous
}

// IsWebApp reports whether the requirement implies a web location.
func (r Requirement) IsWebApp() bool {
	return r == RequirementDomainAndPath || r == RequirementFullDomain
}
