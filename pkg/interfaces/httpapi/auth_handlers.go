package httpapi

import (
	"net/http"

	"github.com/vsinha/cims/pkg/application/services"
)

type dataResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

func ok(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, dataResponse{Status: "success", Data: v})
}

func created(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusCreated, dataResponse{Status: "success", Data: v})
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := a.validator.Decode(r, "register", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	// a role may only be chosen by an administrator through /auth/users
	in.Role = ""
	session, err := a.svc.Auth.Register(r.Context(), nil, in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created(w, session)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := a.validator.Decode(r, "register", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	session, err := a.svc.Auth.Register(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created(w, session.User)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := a.validator.Decode(r, "login", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	session, err := a.svc.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, session)
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	session, err := a.svc.Auth.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, session)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	ok(w, currentUser(r))
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PasswordCurrent string `json:"passwordCurrent"`
		Password        string `json:"password"`
	}
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	session, err := a.svc.Auth.ChangePassword(r.Context(), currentUser(r), in.PasswordCurrent, in.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, session)
}

func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.svc.Auth.ForgotPassword(r.Context(), in.Email); err != nil {
		a.writeError(w, r, err)
		return
	}
	// same answer whether or not the address is registered
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "If that email exists, a reset link has been sent"})
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	session, err := a.svc.Auth.ResetPassword(r.Context(), in.Token, in.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, session)
}
