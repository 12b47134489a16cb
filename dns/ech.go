package dns

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// ErrNoECHConfig is returned when a domain publishes no ECH
// configuration in its HTTPS record.
var ErrNoECHConfig = errors.New("dns: no ECH config in HTTPS record")

const echTTL = 10 * time.Minute

type echRecord struct {
	configList []byte
	expiresAt  time.Time
}

var (
	echMu    sync.RWMutex
	echCache = make(map[string]*echRecord)
)

// ECHConfigList fetches the ECH configuration list published for domain
// via its HTTPS record. Results are cached; the raw list is suitable
// for a TLS config's EncryptedClientHelloConfigList.
func ECHConfigList(ctx context.Context, domain string) ([]byte, error) {
	echMu.RLock()
	rec, ok := echCache[domain]
	echMu.RUnlock()
	if ok && time.Now().Before(rec.expiresAt) {
		return rec.configList, nil
	}

	configList, err := queryECH(ctx, domain)
	if err != nil {
		return nil, err
	}

	echMu.Lock()
	echCache[domain] = &echRecord{
		configList: configList,
		expiresAt:  time.Now().Add(echTTL),
	}
	echMu.Unlock()

	return configList, nil
}

func queryECH(ctx context.Context, domain string) ([]byte, error) {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		// No usable resolver config, fall back to a public resolver.
		conf = &dns.ClientConfig{Servers: []string{"1.1.1.1"}, Port: "53"}
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeHTTPS)
	msg.RecursionDesired = true

	client := new(dns.Client)
	var lastErr error
	for _, server := range conf.Servers {
		resp, _, err := client.ExchangeContext(ctx, msg, server+":"+conf.Port)
		if err != nil {
			lastErr = err
			continue
		}
		for _, rr := range resp.Answer {
			https, ok := rr.(*dns.HTTPS)
			if !ok {
				continue
			}
			for _, kv := range https.Value {
				if ech, ok := kv.(*dns.SVCBECHConfig); ok {
					return ech.ECH, nil
				}
			}
		}
		return nil, ErrNoECHConfig
	}
	if lastErr == nil {
		lastErr = ErrNoECHConfig
	}
	return nil, lastErr
}
