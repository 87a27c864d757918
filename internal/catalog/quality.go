package catalog

// Quality is how much the catalog vouches for an app package.
type Quality string

const (
	QualitySuccess    Quality = "success"
	QualityWarning    Quality = "warning"
	QualityDanger     Quality = "danger"
	QualityThirdParty Quality = "thirdparty"
)

const goodLevel = 5

// QualityOf grades the catalog app name. Apps the catalog does not know
// are third-party.
func (c *Catalog) QualityOf(name string) Quality {
	e, ok := c.Get(name)
	if !ok {
		return QualityThirdParty
	}
	level := e.QualityLevel()
	switch {
	case level == nil:
		return QualityDanger
	case (e.State == "working" || e.State == "validated") && *level >= goodLevel:
		return QualitySuccess
	case *level > 0:
		return QualityWarning
	default:
		return QualityDanger
	}
}

// NeedsConfirmation reports whether installing at this quality should ask
// the operator first.
func (q Quality) NeedsConfirmation() bool {
	return q != QualitySuccess
}
