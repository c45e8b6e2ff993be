// Package broker talks to the Angel One SmartAPI login endpoint.
//
// Every request carries the fixed SmartAPI header set (API key, user type,
// source id and network identification) injected by HeaderTransport, which is
// also used for authenticated passthrough calls.
//
//	client, err := broker.New(broker.Config{BaseURL: broker.DefaultBaseURL, Identity: broker.Identity{APIKey: key}})
//	tokens, err := client.Login(ctx, broker.Credentials{ClientCode: "A123", Password: pw, TOTP: "123456"})
package broker
