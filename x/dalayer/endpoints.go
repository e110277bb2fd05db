package dalayer

// endpoint is one DA layer proof API shape. Deployments expose either
// the v1 raw endpoint, the legacy v0 endpoint, or both; every round in
// the scan window is tried against each shape in order.
type endpoint struct {
	version string
	path    string
}

var proofEndpoints = []endpoint{
	{version: "v1", path: "/api/v1/fdc/proof-by-request-round-raw"},
	{version: "v0", path: "/api/v0/fdc/get-proof-round-id-bytes"},
}
