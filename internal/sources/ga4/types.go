package ga4

// Admin API wire types.

type accountsResponse struct {
	Accounts      []account `json:"accounts"`
	NextPageToken string    `json:"nextPageToken"`
}

type account struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	CreateTime  string `json:"createTime"`
	UpdateTime  string `json:"updateTime"`
	RegionCode  string `json:"regionCode"`
	Deleted     bool   `json:"deleted"`
}

type propertiesResponse struct {
	Properties    []property `json:"properties"`
	NextPageToken string     `json:"nextPageToken"`
}

type property struct {
	Name         string `json:"name"`
	Parent       string `json:"parent"`
	Account      string `json:"account"`
	DisplayName  string `json:"displayName"`
	PropertyType string `json:"propertyType"`
	TimeZone     string `json:"timeZone"`
	CurrencyCode string `json:"currencyCode"`
	CreateTime   string `json:"createTime"`
	UpdateTime   string `json:"updateTime"`
	DeleteTime   string `json:"deleteTime"`
}

type dataStreamsResponse struct {
	DataStreams   []dataStream `json:"dataStreams"`
	NextPageToken string       `json:"nextPageToken"`
}

type dataStream struct {
	Name                 string         `json:"name"`
	Type                 string         `json:"type"`
	DisplayName          string         `json:"displayName"`
	CreateTime           string         `json:"createTime"`
	UpdateTime           string         `json:"updateTime"`
	WebStreamData        *webStreamData `json:"webStreamData,omitempty"`
	AndroidAppStreamData *appStreamData `json:"androidAppStreamData,omitempty"`
	IOSAppStreamData     *appStreamData `json:"iosAppStreamData,omitempty"`
}

type webStreamData struct {
	MeasurementID string `json:"measurementId"`
	FirebaseAppID string `json:"firebaseAppId"`
	DefaultURI    string `json:"defaultUri"`
}

type appStreamData struct {
	FirebaseAppID string `json:"firebaseAppId"`
	PackageName   string `json:"packageName"`
	BundleID      string `json:"bundleId"`
}

// Data API wire types.

type runReportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Dimensions []named     `json:"dimensions,omitempty"`
	Metrics    []named     `json:"metrics"`
	Offset     int64       `json:"offset,string,omitempty"`
	Limit      int64       `json:"limit,string,omitempty"`
	KeepEmpty  bool        `json:"keepEmptyRows,omitempty"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type named struct {
	Name string `json:"name"`
}

type runReportResponse struct {
	DimensionHeaders []named     `json:"dimensionHeaders"`
	MetricHeaders    []metricHdr `json:"metricHeaders"`
	Rows             []row       `json:"rows"`
	RowCount         int         `json:"rowCount"`
}

type metricHdr struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type row struct {
	DimensionValues []value `json:"dimensionValues"`
	MetricValues    []value `json:"metricValues"`
}

type value struct {
	Value string `json:"value"`
}

// Google API error envelope.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
