package signer

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/atomport/solver/internal/utils/config"
	"github.com/atomport/solver/internal/utils/logger"
)

// RemoteSigner talks to the custody service over HTTP.
type RemoteSigner struct {
	client   *resty.Client
	endpoint string
	logger   *logger.Logger
}

type signRequest struct {
	Network string `json:"network"`
	Address string `json:"address"`
	Payload string `json:"payload"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

type generateRequest struct {
	Network string `json:"network"`
}

type generateResponse struct {
	Address string `json:"address"`
}

func NewRemote(cfg config.SignerConfig, logger *logger.Logger) *RemoteSigner {
	client := resty.New().
		SetAuthToken(cfg.APIToken).
		SetHeader("Content-Type", "application/json")

	return &RemoteSigner{
		client:   client,
		endpoint: cfg.Endpoint,
		logger:   logger,
	}
}

func (s *RemoteSigner) Sign(ctx context.Context, network, address string, payload []byte) ([]byte, error) {
	var result signResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(signRequest{
			Network: network,
			Address: address,
			Payload: base64.StdEncoding.EncodeToString(payload),
		}).
		SetResult(&result).
		Post(fmt.Sprintf("%s/v1/sign", s.endpoint))
	if err != nil {
		return nil, errors.Wrap(err, "signer request failed")
	}

	if resp.IsError() {
		if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
			return nil, errors.Wrapf(ErrPermanent, "signer rejected address %s: %s", address, resp.Status())
		}
		return nil, errors.Errorf("signer returned %s", resp.Status())
	}

	signature, err := base64.StdEncoding.DecodeString(result.Signature)
	if err != nil {
		return nil, errors.Wrap(err, "malformed signature in signer response")
	}
	return signature, nil
}

func (s *RemoteSigner) Generate(ctx context.Context, network string) (string, error) {
	var result generateResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(generateRequest{Network: network}).
		SetResult(&result).
		Post(fmt.Sprintf("%s/v1/addresses", s.endpoint))
	if err != nil {
		return "", errors.Wrap(err, "signer request failed")
	}

	if resp.IsError() {
		if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
			return "", errors.Wrap(ErrPermanent, resp.Status())
		}
		return "", errors.Errorf("signer returned %s", resp.Status())
	}
	return result.Address, nil
}
