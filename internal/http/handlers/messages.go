package handlers

// User-facing error codes. Internal faults all collapse to codeInternal.
const (
	codeBadRequest          = "bad_request"
	codeUnauthorized        = "unauthorized"
	codeNotFound            = "not_found"
	codeInternal            = "internal"
	codeInsufficientBalance = "insufficient_balance"
	codeSubscriptionActive  = "subscription_active"
	codePlanNotFound        = "plan_not_found"
	codePaymentUnverified   = "payment_unverified"
	codeRateLimited         = "rate_limited"
	codeCreditsExhausted    = "credits_exhausted"
)

// messages holds the per-locale catalog for user-facing codes.
var messages = map[string]map[string]string{
	"en": {
		codeBadRequest:          "invalid request",
		codeUnauthorized:        "authentication required",
		codeNotFound:            "not found",
		codeInternal:            "something went wrong, please try again",
		codeInsufficientBalance: "not enough points for this operation",
		codeSubscriptionActive:  "you already have an active subscription",
		codePlanNotFound:        "unknown subscription plan",
		codePaymentUnverified:   "payment could not be verified",
		codeRateLimited:         "the generator is busy, please retry shortly",
		codeCreditsExhausted:    "generation quota exhausted, please wait or upgrade",
	},
	"id": {
		codeBadRequest:          "permintaan tidak valid",
		codeUnauthorized:        "autentikasi diperlukan",
		codeNotFound:            "tidak ditemukan",
		codeInternal:            "terjadi kesalahan, silakan coba lagi",
		codeInsufficientBalance: "poin tidak cukup untuk operasi ini",
		codeSubscriptionActive:  "Anda sudah memiliki langganan aktif",
		codePlanNotFound:        "paket langganan tidak dikenal",
		codePaymentUnverified:   "pembayaran tidak dapat diverifikasi",
		codeRateLimited:         "generator sedang sibuk, silakan coba lagi sebentar",
		codeCreditsExhausted:    "kuota generasi habis, silakan tunggu atau upgrade",
	},
}

func message(code, locale string) string {
	if catalog, ok := messages[locale]; ok {
		if msg, ok := catalog[code]; ok {
			return msg
		}
	}
	if msg, ok := messages["en"][code]; ok {
		return msg
	}
	return code
}
