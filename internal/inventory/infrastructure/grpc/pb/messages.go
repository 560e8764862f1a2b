package pb

type CheckAvailabilityRequest struct {
	SKU string `json:"sku"`
}

type CheckAvailabilityResponse struct {
	SKU       string `json:"sku"`
	Available bool   `json:"available"`
}

type CheckAvailabilityBatchRequest struct {
	SKUs []string `json:"skus"`
}

type SKUAvailability struct {
	SKU       string `json:"sku"`
	Available bool   `json:"available"`
}

// CheckAvailabilityBatchResponse lists one result per distinct requested SKU,
// in first-seen request order.
type CheckAvailabilityBatchResponse struct {
	Results []SKUAvailability `json:"results"`
}

func (x *CheckAvailabilityRequest) GetSKU() string {
	if x != nil {
		return x.SKU
	}
	return ""
}

func (x *CheckAvailabilityBatchRequest) GetSKUs() []string {
	if x != nil {
		return x.SKUs
	}
	return nil
}

func (x *CheckAvailabilityBatchResponse) GetResults() []SKUAvailability {
	if x != nil {
		return x.Results
	}
	return nil
}
