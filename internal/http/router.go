package http

import (
	"database/sql"
	"net/http"

	"github.com/clinicore/clinical-records-service/internal/appointment"
	"github.com/clinicore/clinical-records-service/internal/auth"
	"github.com/clinicore/clinical-records-service/internal/doctor"
	"github.com/clinicore/clinical-records-service/internal/messaging"
	"github.com/clinicore/clinical-records-service/internal/patient"
	"github.com/clinicore/clinical-records-service/internal/prescription"
	"github.com/clinicore/clinical-records-service/internal/telemetry"
	"github.com/clinicore/clinical-records-service/internal/tenant"
	"github.com/clinicore/clinical-records-service/internal/tenantctx"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// Dependencies collects everything the router wires together.
type Dependencies struct {
	DB        *sql.DB
	Binder    *tenantctx.Binder
	Verifier  *auth.Verifier
	Perms     auth.Permissions
	Publisher messaging.PublisherInterface
	Metrics   *telemetry.Metrics
}

// SetupRouter initializes all routes for the application
func SetupRouter(deps Dependencies) *mux.Router {
	patientRepo := patient.NewRepository()
	patientService := patient.NewService(deps.Binder, patientRepo, deps.Publisher, patient.FamilyLimitFromEnv())

	doctorRepo := doctor.NewRepository()
	doctorService := doctor.NewService(deps.Binder, doctorRepo)
	doctorHandler := doctor.NewHandler(doctorService)

	apptRepo := appointment.NewRepository()
	apptService := appointment.NewService(deps.Binder, apptRepo, patientRepo, doctorRepo, deps.Publisher)
	apptHandler := appointment.NewHandler(apptService)

	templateRepo := prescription.NewRepository()
	templateService := prescription.NewService(deps.Binder, templateRepo)
	templateHandler := prescription.NewHandler(templateService)

	tenantRepo := tenant.NewRepository()
	tenantService := tenant.NewService(deps.DB, deps.Binder, tenantRepo, doctorRepo, deps.Publisher)
	tenantHandler := tenant.NewHandler(tenantService)

	if deps.Metrics != nil {
		patientService.WithMetrics(deps.Metrics)
		apptService.WithMetrics(deps.Metrics)
	}
	patientHandler := patient.NewHandler(patientService)

	resolve := auth.ResolveTenant(deps.Verifier)
	if deps.Metrics != nil {
		resolve = auth.ResolveTenantWithMetrics(deps.Verifier, deps.Metrics)
	}
	require := func(permission string) func(http.Handler) http.Handler {
		if deps.Metrics != nil {
			return auth.RequirePermissionWithMetrics(permission, deps.Perms, deps.Metrics)
		}
		return auth.RequirePermission(permission, deps.Perms)
	}
	protected := func(permission string, h http.HandlerFunc) http.Handler {
		return resolve(require(permission)(h))
	}

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("clinical-records-service"))

	// Public health endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"clinical-records-service"}`))
	}).Methods("GET")

	// Clinic registration and login run without a token: registration
	// creates the tenant, and login is the pre-tenant credential lookup.
	r.HandleFunc("/clinics/register", tenantHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", tenantHandler.Login).Methods("POST")

	// Tenant administration (platform operators)
	r.Handle("/tenants", protected("tenant:view", tenantHandler.List)).Methods("GET")
	r.Handle("/tenants/{id}", protected("tenant:view", tenantHandler.Get)).Methods("GET")
	r.Handle("/tenants/{id}/plan", protected("tenant:manage", tenantHandler.ChangePlan)).Methods("PUT")
	r.Handle("/tenants/{id}/deactivate", protected("tenant:manage", tenantHandler.Deactivate)).Methods("POST")
	r.Handle("/tenants/{id}/reactivate", protected("tenant:manage", tenantHandler.Reactivate)).Methods("POST")

	// Doctor routes
	r.Handle("/doctors", protected("doctor:create", doctorHandler.Create)).Methods("POST")
	r.Handle("/doctors", protected("doctor:view", doctorHandler.List)).Methods("GET")
	r.Handle("/doctors/{id}", protected("doctor:view", doctorHandler.Get)).Methods("GET")
	r.Handle("/doctors/{id}/offices", protected("doctor:update", doctorHandler.AddOffice)).Methods("POST")
	r.Handle("/doctors/{id}/appointments", protected("appointment:view", apptHandler.ListDay)).Methods("GET")

	// Patient routes
	r.Handle("/patients", protected("patient:create", patientHandler.Register)).Methods("POST")
	r.Handle("/patients/lookup", protected("patient:view", patientHandler.Lookup)).Methods("GET")
	r.Handle("/patients/family", protected("patient:view", patientHandler.ListFamily)).Methods("GET")
	r.Handle("/patients/{id}", protected("patient:view", patientHandler.Get)).Methods("GET")
	r.Handle("/patients/{id}/deactivate", protected("patient:update", patientHandler.Deactivate)).Methods("POST")
	r.Handle("/patients/{id}/reactivate", protected("patient:update", patientHandler.Reactivate)).Methods("POST")
	r.Handle("/patients/appointments", protected("appointment:view", apptHandler.ListForPatient)).Methods("GET")

	// Appointment routes
	r.Handle("/appointments", protected("appointment:create", apptHandler.Book)).Methods("POST")
	r.Handle("/appointments/{id}", protected("appointment:view", apptHandler.Get)).Methods("GET")
	r.Handle("/appointments/{id}/reschedule", protected("appointment:update", apptHandler.Reschedule)).Methods("POST")
	r.Handle("/appointments/{id}/status", protected("appointment:update", apptHandler.UpdateStatus)).Methods("PUT")

	// Prescription template routes
	r.Handle("/templates", protected("template:create", templateHandler.Create)).Methods("POST")
	r.Handle("/templates", protected("template:view", templateHandler.List)).Methods("GET")
	r.Handle("/templates/resolve", protected("template:view", templateHandler.Resolve)).Methods("GET")
	r.Handle("/templates/{id}", protected("template:view", templateHandler.Get)).Methods("GET")

	return r
}
