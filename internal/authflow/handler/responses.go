package handler

type decisionResponse struct {
	RedirectTo string `json:"redirect_to"`
}

type clientsResponse struct {
	ValidClients []string `json:"valid_clients"`
}
