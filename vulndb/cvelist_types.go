package vulndb

// cvelistCVE mirrors the CVE-list-v5 record schema, reduced to the fields the
// reconciler consumes.
type cvelistCVE struct {
	DataType    string `json:"dataType"`
	CveMetadata struct {
		CveID             string `json:"cveId"`
		AssignerShortName string `json:"assignerShortName"`
		State             string `json:"state"`
		DatePublished     string `json:"datePublished"`
		DateUpdated       string `json:"dateUpdated"`
	} `json:"cveMetadata"`
	Containers struct {
		Cna struct {
			Title        string `json:"title"`
			ProblemTypes []struct {
				Descriptions []struct {
					CweID       string `json:"cweId"`
					Lang        string `json:"lang"`
					Description string `json:"description"`
					Type        string `json:"type"`
				} `json:"descriptions"`
			} `json:"problemTypes"`
			Metrics []struct {
				CvssV31 struct {
					BaseScore    float64 `json:"baseScore"`
					BaseSeverity string  `json:"baseSeverity"`
					VectorString string  `json:"vectorString"`
					Version      string  `json:"version"`
				} `json:"cvssV3_1"`
			} `json:"metrics"`
			References []struct {
				Name string   `json:"name,omitempty"`
				Tags []string `json:"tags,omitempty"`
				URL  string   `json:"url"`
			} `json:"references"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
			Affected []struct {
				Vendor  string `json:"vendor"`
				Product string `json:"product"`
			} `json:"affected"`
		} `json:"cna"`
	} `json:"containers"`
}
