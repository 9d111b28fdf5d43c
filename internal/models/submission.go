// Package models содержит доменные структуры: запись заявки (submission)
// с зеркалом состояния подписки Stripe и запись аудита проверок доступа.
package models

import (
	"strings"
	"time"
)

// SubmissionStatus статус одобрения заявки.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRevoked  SubmissionStatus = "revoked"
)

// Статусы подписки Stripe, которые имеют значение для доступа.
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// Причины отзыва доступа (access_revoked_reason).
const (
	RevokePeriodEndElapsed            = "period_end_elapsed"
	RevokeSubscriptionDeleted         = "subscription_deleted"
	RevokeInvoicePaymentFailed        = "invoice_payment_failed"
	RevokeInvoicePaymentFailedByEmail = "invoice_payment_failed_no_subscription_id"
	RevokeAdmin                       = "admin_revoked"
)

// RevokeSubscriptionStatus формирует причину отзыва вида subscription_<status>.
func RevokeSubscriptionStatus(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	return "subscription_" + status
}

// Submission запись заявки одного аккаунта. Поля подписки зеркалят Stripe.
type Submission struct {
	ID                  string           `json:"id"`
	Email               string           `json:"email"`
	Status              SubmissionStatus `json:"status"`
	SubscriptionID      *string          `json:"subscription_id,omitempty"`
	CustomerID          *string          `json:"customer_id,omitempty"`
	SubscriptionStatus  *string          `json:"subscription_status,omitempty"`
	CurrentPeriodEnd    *time.Time       `json:"current_period_end,omitempty"`
	AccessRevokedAt     *time.Time       `json:"access_revoked_at,omitempty"`
	AccessRevokedReason *string          `json:"access_revoked_reason,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// Revoked сообщает, отозван ли доступ.
func (s *Submission) Revoked() bool {
	return s.AccessRevokedAt != nil
}

// SubscriptionStatusValue возвращает статус подписки или пустую строку.
func (s *Submission) SubscriptionStatusValue() string {
	if s.SubscriptionStatus == nil {
		return ""
	}
	return *s.SubscriptionStatus
}

// IsGoodSubscriptionStatus возвращает true для статусов, дающих доступ.
func IsGoodSubscriptionStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case SubscriptionActive, SubscriptionTrialing:
		return true
	default:
		return false
	}
}

// MirrorPatch набор зеркальных полей для слияния в запись. nil означает "не менять".
type MirrorPatch struct {
	SubscriptionID     *string
	CustomerID         *string
	SubscriptionStatus *string
	CurrentPeriodEnd   *time.Time
}

// NormalizeEmail приводит email к виду, в котором он хранится.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StringPtr возвращает указатель на непустую строку, иначе nil.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
