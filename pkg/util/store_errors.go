package util

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"

	"todohabit/pkg/circuitbreaker"
)

// 文档存储统一错误，各驱动实现需要包装成这两个哨兵错误之一
var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// ErrorKind 存储错误分类
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindPermission ErrorKind = "permission"
	KindNotFound   ErrorKind = "not_found"
	KindTransient  ErrorKind = "transient"
)

// PostgreSQL 权限类 SQLSTATE
var pgPermissionCodes = map[string]bool{
	"42501": true, // insufficient_privilege
	"28000": true, // invalid_authorization_specification
	"28P01": true, // invalid_password
}

// Mongo 权限类错误码：Unauthorized / AuthenticationFailed
var mongoPermissionCodes = []int{13, 18}

// ClassifyStoreError 将驱动错误映射为 permission / not_found / transient
// 返回：(kind, reason)
func ClassifyStoreError(err error) (ErrorKind, string) {
	if err == nil {
		return KindNone, ""
	}

	// 权限
	if errors.Is(err, ErrPermissionDenied) {
		return KindPermission, "permission_denied"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgPermissionCodes[pgErr.Code] {
		return KindPermission, "pg_" + pgErr.Code
	}
	var mongoErr mongo.ServerError
	if errors.As(err, &mongoErr) {
		for _, code := range mongoPermissionCodes {
			if mongoErr.HasErrorCode(code) {
				return KindPermission, "mongo_unauthorized"
			}
		}
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "insufficient permissions") {
		return KindPermission, "permission_denied"
	}

	// 不存在 - 正常的创建触发
	if errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, mongo.ErrNoDocuments) {
		return KindNotFound, "not_found"
	}

	// 其余一律视为临时错误
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return KindTransient, "breaker_open"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return KindTransient, "context_canceled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTransient, "network_timeout"
		}
		return KindTransient, "network_error"
	}
	if pgErr != nil {
		return KindTransient, "pg_" + pgErr.Code
	}
	return KindTransient, "unknown"
}

// IsPermission 是否为权限错误
func IsPermission(err error) bool {
	kind, _ := ClassifyStoreError(err)
	return kind == KindPermission
}

// IsNotFound 是否为文档不存在
func IsNotFound(err error) bool {
	kind, _ := ClassifyStoreError(err)
	return kind == KindNotFound
}
