// Package handlers holds helpers shared by the HTTP handler packages.
package handlers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
)

// ParseUintParam reads a non-negative integer path parameter.
func ParseUintParam(c *gin.Context, name string) (uint64, error) {
	raw := c.Param(name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a valid id", xerrors.ErrInvalidInput, name, raw)
	}
	return v, nil
}

// ParseAccountParam reads an account address path parameter.
func ParseAccountParam(c *gin.Context, name string) (account.Address, error) {
	acct, err := account.Parse(c.Param(name))
	if err != nil {
		return "", fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}
	return acct, nil
}
