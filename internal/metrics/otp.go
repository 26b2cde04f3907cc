// Package metrics define las métricas Prometheus del core OTP. Vive aparte
// para que challenge, sms, qr y verify puedan registrar sin ciclos con http.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	VerifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otpgate_verify_total",
		Help: "Verificaciones por flujo, tipo de token y resultado",
	}, []string{"flow", "type", "outcome"}) // flow: direct|trigger|answer|check_s|check_t

	VerifyDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "otpgate_verify_duration_seconds",
		Help:    "Latencia de verificación por flujo",
		Buckets: prometheus.DefBuckets,
	}, []string{"flow"})

	ChallengesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otpgate_challenges_total",
		Help: "Transacciones de challenge creadas por tipo de token",
	}, []string{"type"})

	SMSDeliveryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otpgate_sms_delivery_total",
		Help: "Entregas SMS por provider y resultado",
	}, []string{"provider", "result"}) // result: ok|error|timeout

	PairingTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otpgate_pairing_total",
		Help: "Respuestas de pairing QR por resultado",
	}, []string{"result"})
)

// Register registra las métricas en reg (o el default si es nil).
// Tolera registros duplicados.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{VerifyTotal, VerifyDuration, ChallengesTotal, SMSDeliveryTotal, PairingTotal} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

func ObserveVerify(flow, tokenType, outcome string, d time.Duration) {
	VerifyTotal.WithLabelValues(flow, tokenType, outcome).Inc()
	VerifyDuration.WithLabelValues(flow).Observe(d.Seconds())
}

func ChallengeCreated(tokenType string) {
	ChallengesTotal.WithLabelValues(tokenType).Inc()
}

func SMSDelivery(provider, result string) {
	SMSDeliveryTotal.WithLabelValues(provider, result).Inc()
}

func Pairing(result string) {
	PairingTotal.WithLabelValues(result).Inc()
}
