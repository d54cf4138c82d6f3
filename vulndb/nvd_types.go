package vulndb

type nvdCpeMatch struct {
	Vulnerable      bool   `json:"vulnerable"`
	Criteria        string `json:"criteria"`
	MatchCriteriaID string `json:"matchCriteriaId"`

	VersionEndExcluding   string `json:"versionEndExcluding"`
	VersionEndIncluding   string `json:"versionEndIncluding"`
	VersionStartIncluding string `json:"versionStartIncluding"`
}

type nvdCvssData struct {
	Version      string  `json:"version"`
	VectorString string  `json:"vectorString"`
	BaseScore    float64 `json:"baseScore"`
	BaseSeverity string  `json:"baseSeverity"`
}

type nvdCVE struct {
	ID               string `json:"id"`
	SourceIdentifier string `json:"sourceIdentifier"`
	Published        string `json:"published"`
	LastModified     string `json:"lastModified"`
	VulnStatus       string `json:"vulnStatus"`
	Descriptions     []struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	} `json:"descriptions"`
	Metrics struct {
		CvssMetricV40 []struct {
			Source   string      `json:"source"`
			Type     string      `json:"type"`
			CvssData nvdCvssData `json:"cvssData"`
		} `json:"cvssMetricV40"`
		CvssMetricV31 []struct {
			Source              string      `json:"source"`
			Type                string      `json:"type"`
			CvssData            nvdCvssData `json:"cvssData"`
			ExploitabilityScore float64     `json:"exploitabilityScore"`
			ImpactScore         float64     `json:"impactScore"`
		} `json:"cvssMetricV31"`
	} `json:"metrics"`
	Weaknesses []struct {
		Source      string `json:"source"`
		Type        string `json:"type"`
		Description []struct {
			Lang  string `json:"lang"`
			Value string `json:"value"`
		} `json:"description"`
	} `json:"weaknesses"`
	Configurations []struct {
		Operator string `json:"operator"`
		Nodes    []struct {
			Operator string        `json:"operator"`
			Negate   bool          `json:"negate"`
			CpeMatch []nvdCpeMatch `json:"cpeMatch"`
		} `json:"nodes"`
	} `json:"configurations"`
	References []struct {
		URL    string   `json:"url"`
		Source string   `json:"source"`
		Tags   []string `json:"tags"`
	} `json:"references"`
}

type nistResponse struct {
	ResultsPerPage  int    `json:"resultsPerPage"`
	StartIndex      int    `json:"startIndex"`
	TotalResults    int    `json:"totalResults"`
	Format          string `json:"format"`
	Version         string `json:"version"`
	Timestamp       string `json:"timestamp"`
	Vulnerabilities []struct {
		Cve nvdCVE `json:"cve"`
	} `json:"vulnerabilities"`
}
