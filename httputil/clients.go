package httputil

import (
	"net/http"
	"net/url"
	"time"

	"hk_bids/config"
)

const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Clients struct {
	Scraping *http.Client // proxied when PROXY_URL is set, for listing pages
	API      *http.Client // direct, for Smartsheet
}

func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyCfg != nil && proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout:   20 * time.Second,
			Transport: transport,
		},
		API: &http.Client{Timeout: 30 * time.Second},
	}
}
