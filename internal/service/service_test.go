package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gear-market/internal/core/auth"
	"gear-market/internal/core/password"
	"gear-market/internal/core/storage"
	"gear-market/internal/domain"
	"gear-market/internal/repo/memory"
)

const pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"

func ptr[T any](v T) *T { return &v }

func upload(name, content string) Upload {
	return Upload{
		Filename: name,
		Size:     int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func pngs(n int) []Upload {
	out := make([]Upload, n)
	for i := range out {
		out[i] = upload("img.png", pngHeader)
	}
	return out
}

type env struct {
	store    *memory.Store
	dir      string
	files    *storage.Local
	accounts *AccountService
	products *ProductService
	admin    *AdminService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	st, err := storage.NewLocal(dir, "/media")
	require.NoError(t, err)
	mem := memory.New()
	j := &auth.JWTer{Secret: []byte("s"), RefreshSecret: []byte("r"), Issuer: "test", TTL: time.Minute, RefreshTTL: time.Hour}
	log := zap.NewNop()
	ps := NewProductService(mem.Products(), st, 10, log)
	return &env{
		store:    mem,
		dir:      dir,
		files:    st,
		accounts: NewAccountService(mem.Users(), j, password.Default(), st, log),
		products: ps,
		admin:    NewAdminService(mem.Users(), ps, log),
	}
}

func (e *env) register(t *testing.T, name string) auth.Caller {
	t.Helper()
	v, err := e.accounts.Register(context.Background(), RegisterInput{
		Username: name, Password: "Str0ng!Pass", Password2: "Str0ng!Pass",
		Email: name + "@example.com", Role: domain.RoleSeller,
	})
	require.NoError(t, err)
	return auth.Caller{UserID: v.ID, Role: string(v.Role)}
}

func fields() domain.ProductPatch {
	return domain.ProductPatch{
		Title:       ptr("Fender Stratocaster"),
		Price:       ptr(int64(1200000)),
		Description: ptr("Mint condition"),
		Condition:   ptr(domain.ConditionLikeNew),
		Category:    ptr(domain.CategoryGuitar),
		Brand:       ptr("Fender"),
		ModelName:   ptr("Player Strat"),
	}
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "want validation error, got %v", err)
	return ve.Fields
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestRegister_PasswordMismatchCreatesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.accounts.Register(ctx, RegisterInput{
		Username: "alice", Password: "Str0ng!Pass", Password2: "Other!Pass1", Email: "a@x.io",
	})
	assert.Contains(t, fieldErrors(t, err), "password")

	u, err := e.store.Users().FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestRegister_WeakPasswordAndDuplicateUsername(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.accounts.Register(ctx, RegisterInput{Username: "bob", Password: "1234", Password2: "1234"})
	fe := fieldErrors(t, err)
	assert.Len(t, fe["password"], 2)

	e.register(t, "alice")
	_, err = e.accounts.Register(ctx, RegisterInput{Username: "alice", Password: "Str0ng!Pass", Password2: "Str0ng!Pass"})
	assert.Contains(t, fieldErrors(t, err), "username")
}

func TestRegister_PasswordLongerThanBcryptAllows(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	long := "Aa1!" + strings.Repeat("x", 80)
	_, err := e.accounts.Register(ctx, RegisterInput{Username: "dave", Password: long, Password2: long, Email: "d@x.io"})
	assert.Equal(t, []string{"This password is too long. It must contain at most 72 bytes."}, fieldErrors(t, err)["password"])

	u, err := e.store.Users().FindByUsername(ctx, "dave")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestRegister_DefaultsToBuyer(t *testing.T) {
	e := newEnv(t)
	v, err := e.accounts.Register(context.Background(), RegisterInput{
		Username: "carol", Password: "Str0ng!Pass", Password2: "Str0ng!Pass", Email: "c@x.io", PhoneNumber: "01012345678",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBuyer, v.Role)
	assert.Equal(t, "01012345678", *v.PhoneNumber)
	assert.Len(t, v.ID, 32)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "alice")

	_, err := e.accounts.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = e.accounts.Login(ctx, "nobody", "Str0ng!Pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	res, err := e.accounts.Login(ctx, "alice", "Str0ng!Pass")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.User.Username)
	assert.NotEmpty(t, res.Token.Access)
	assert.NotEmpty(t, res.Token.Refresh)

	pair, err := e.accounts.Refresh(ctx, res.Token.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)
	assert.Empty(t, pair.Refresh)

	_, err = e.accounts.Refresh(ctx, res.Token.Access)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestLogin_InactiveUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.register(t, "alice")
	login, err := e.accounts.Login(ctx, "alice", "Str0ng!Pass")
	require.NoError(t, err)

	require.NoError(t, e.admin.SetActive(ctx, c.UserID, false))
	_, err = e.accounts.Login(ctx, "alice", "Str0ng!Pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = e.accounts.Refresh(ctx, login.Token.Refresh)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.register(t, "alice")

	_, err := e.accounts.ChangePassword(ctx, c, ChangePasswordInput{OldPassword: "nope", NewPassword: "N3w!Secret", NewPassword2: "N3w!Secret"})
	assert.Contains(t, fieldErrors(t, err), "old_password")

	_, err = e.accounts.ChangePassword(ctx, c, ChangePasswordInput{OldPassword: "Str0ng!Pass", NewPassword: "N3w!Secret", NewPassword2: "different1"})
	assert.Contains(t, fieldErrors(t, err), "new_password2")

	_, err = e.accounts.ChangePassword(ctx, c, ChangePasswordInput{OldPassword: "Str0ng!Pass", NewPassword: "short", NewPassword2: "short"})
	assert.Contains(t, fieldErrors(t, err), "new_password")

	long := "Aa1!" + strings.Repeat("x", 80)
	_, err = e.accounts.ChangePassword(ctx, c, ChangePasswordInput{OldPassword: "Str0ng!Pass", NewPassword: long, NewPassword2: long})
	assert.Contains(t, fieldErrors(t, err), "new_password")

	pair, err := e.accounts.ChangePassword(ctx, c, ChangePasswordInput{OldPassword: "Str0ng!Pass", NewPassword: "N3w!Secret", NewPassword2: "N3w!Secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)

	_, err = e.accounts.Login(ctx, "alice", "Str0ng!Pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = e.accounts.Login(ctx, "alice", "N3w!Secret")
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	e.register(t, "bob")

	_, err := e.accounts.UpdateProfile(ctx, alice, ProfileInput{Patch: domain.ProfilePatch{Email: ptr("BOB@example.com")}})
	assert.Contains(t, fieldErrors(t, err), "email")

	// keeping your own address is fine
	v, err := e.accounts.UpdateProfile(ctx, alice, ProfileInput{Patch: domain.ProfilePatch{
		Email: ptr("alice@example.com"), Role: ptr(domain.RoleBuyer), PhoneNumber: ptr("010"),
	}})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBuyer, v.Role)
	assert.Equal(t, "010", *v.PhoneNumber)

	_, err = e.accounts.UpdateProfile(ctx, alice, ProfileInput{Avatar: ptr(upload("me.txt", "plain text"))})
	assert.Contains(t, fieldErrors(t, err), "profile_image")

	v, err = e.accounts.UpdateProfile(ctx, alice, ProfileInput{Avatar: ptr(upload("me.png", pngHeader))})
	require.NoError(t, err)
	require.NotNil(t, v.ProfileImage)
	assert.True(t, strings.HasPrefix(*v.ProfileImage, "/media/profile_images/"))
	assert.Equal(t, 1, countFiles(t, e.dir))

	// replacing the avatar removes the previous file
	_, err = e.accounts.UpdateProfile(ctx, alice, ProfileInput{Avatar: ptr(upload("me2.png", pngHeader))})
	require.NoError(t, err)
	assert.Equal(t, 1, countFiles(t, e.dir))

	_, err = e.accounts.Profile(ctx, auth.Caller{})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestCreate_MainImageIndex(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")

	v, err := e.products.Create(ctx, alice, CreateProductInput{Fields: fields(), Images: pngs(3), MainImage: ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, "alice", v.Seller)
	assert.Equal(t, alice.UserID, v.SellerID)
	assert.Equal(t, domain.StatusAvailable, v.Status)
	assert.Equal(t, int64(0), v.Views)
	require.Len(t, v.Images, 3)
	mains := 0
	for _, im := range v.Images {
		if im.IsMain {
			mains++
			assert.Equal(t, 1, im.Position)
		}
	}
	assert.Equal(t, 1, mains)
	assert.Equal(t, 3, countFiles(t, e.dir))

	v, err = e.products.Create(ctx, alice, CreateProductInput{Fields: fields(), Images: pngs(2)})
	require.NoError(t, err)
	assert.True(t, v.Images[0].IsMain)
	assert.Equal(t, 0, v.Images[0].Position)

	v, err = e.products.Create(ctx, alice, CreateProductInput{Fields: fields()})
	require.NoError(t, err)
	assert.Empty(t, v.Images)
}

func TestCreate_Rejects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")

	_, err := e.products.Create(ctx, alice, CreateProductInput{Fields: fields(), Images: pngs(2), MainImage: ptr(2)})
	assert.Contains(t, fieldErrors(t, err), "main_image")

	_, err = e.products.Create(ctx, alice, CreateProductInput{
		Fields: fields(),
		Images: []Upload{upload("a.png", pngHeader), upload("evil.png", "#!/bin/sh")},
	})
	assert.Contains(t, fieldErrors(t, err), "uploaded_images")

	_, err = e.products.Create(ctx, alice, CreateProductInput{Fields: domain.ProductPatch{Title: ptr("x")}})
	assert.Contains(t, fieldErrors(t, err), "price")

	_, err = e.products.Create(ctx, auth.Caller{}, CreateProductInput{Fields: fields()})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	assert.Equal(t, 0, countFiles(t, e.dir))
}

func TestCreate_RemovesFilesWhenInsertFails(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	e.store.FailImageInsert = errors.New("disk full")

	_, err := e.products.Create(context.Background(), alice, CreateProductInput{Fields: fields(), Images: pngs(3)})
	require.Error(t, err)
	assert.Equal(t, 0, countFiles(t, e.dir))
}

func TestCreate_SanitizesText(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	f := fields()
	f.Title = ptr("<b>Tom's</b> <script>alert(1)</script>Strat")

	v, err := e.products.Create(context.Background(), alice, CreateProductInput{Fields: f})
	require.NoError(t, err)
	assert.Equal(t, "Tom's Strat", v.Title)
}

func TestRetrieve_IncrementsViews(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	created, err := e.products.Create(ctx, alice, CreateProductInput{Fields: fields()})
	require.NoError(t, err)

	v, err := e.products.Retrieve(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Views)
	v, err = e.products.Retrieve(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Views)

	_, err = e.products.Retrieve(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdate_OwnerOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")
	created, err := e.products.Create(ctx, alice, CreateProductInput{Fields: fields()})
	require.NoError(t, err)

	for _, c := range []auth.Caller{bob, {}} {
		_, err = e.products.Update(ctx, c, created.ID, UpdateProductInput{Method: http.MethodPatch, Fields: domain.ProductPatch{Price: ptr(int64(1))}})
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	}
	got, err := e.store.Products().FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1200000), got.Price)

	v, err := e.products.Update(ctx, alice, created.ID, UpdateProductInput{Method: http.MethodPatch, Fields: domain.ProductPatch{Status: ptr(domain.StatusSold)}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSold, v.Status)
	assert.Equal(t, "Fender Stratocaster", v.Title)

	_, err = e.products.Update(ctx, alice, created.ID, UpdateProductInput{Method: http.MethodPut, Full: true, Fields: domain.ProductPatch{Title: ptr("only")}})
	assert.Contains(t, fieldErrors(t, err), "price")
}

func TestUpdate_Images(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	created, err := e.products.Create(ctx, alice, CreateProductInput{Fields: fields(), Images: pngs(2)})
	require.NoError(t, err)

	// appended without an index: main stays where it was
	v, err := e.products.Update(ctx, alice, created.ID, UpdateProductInput{Images: pngs(1)})
	require.NoError(t, err)
	require.Len(t, v.Images, 3)
	assert.Equal(t, 0, v.Images[0].Position)
	assert.True(t, v.Images[0].IsMain)

	// index into the new uploads
	v, err = e.products.Update(ctx, alice, created.ID, UpdateProductInput{Images: pngs(2), MainImage: ptr(1)})
	require.NoError(t, err)
	require.Len(t, v.Images, 5)
	assert.True(t, v.Images[0].IsMain)
	assert.Equal(t, 4, v.Images[0].Position)

	// index into existing images by position
	v, err = e.products.Update(ctx, alice, created.ID, UpdateProductInput{MainImage: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Images[0].Position)
	assert.True(t, v.Images[0].IsMain)
	for _, im := range v.Images[1:] {
		assert.False(t, im.IsMain)
	}

	// by id
	target := v.Images[3].ID
	v, err = e.products.Update(ctx, alice, created.ID, UpdateProductInput{MainImageID: &target})
	require.NoError(t, err)
	assert.Equal(t, target, v.Images[0].ID)

	_, err = e.products.Update(ctx, alice, created.ID, UpdateProductInput{MainImage: ptr(9)})
	assert.Contains(t, fieldErrors(t, err), "main_image")
	_, err = e.products.Update(ctx, alice, created.ID, UpdateProductInput{MainImageID: ptr("nope")})
	assert.Contains(t, fieldErrors(t, err), "main_image_id")
}

func TestUpdate_NothingToChangeSkipsWrite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	created, err := e.products.Create(ctx, alice, CreateProductInput{Fields: fields(), Images: pngs(1)})
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	v, err := e.products.Update(ctx, alice, created.ID, UpdateProductInput{Method: http.MethodPatch})
	require.NoError(t, err)
	assert.Equal(t, created.UpdatedAt, v.UpdatedAt)
	assert.Equal(t, created.Title, v.Title)
	require.Len(t, v.Images, 1)

	bob := e.register(t, "bob")
	_, err = e.products.Update(ctx, bob, created.ID, UpdateProductInput{Method: http.MethodPatch})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestImageSizeLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	e.products.MaxImageBytes = int64(len(pngHeader))

	big := upload("big.png", pngHeader+strings.Repeat("\x00", 16))
	_, err := e.products.Create(ctx, alice, CreateProductInput{Fields: fields(), Images: []Upload{pngs(1)[0], big}})
	assert.Equal(t, []string{"big.png: The file is larger than 29 bytes."}, fieldErrors(t, err)["uploaded_images"])
	assert.Equal(t, 0, countFiles(t, e.dir))

	created, err := e.products.Create(ctx, alice, CreateProductInput{Fields: fields(), Images: pngs(1)})
	require.NoError(t, err)
	_, err = e.products.Update(ctx, alice, created.ID, UpdateProductInput{Images: []Upload{big}})
	assert.Contains(t, fieldErrors(t, err), "uploaded_images")
	assert.Equal(t, 1, countFiles(t, e.dir))
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")
	created, err := e.products.Create(ctx, alice, CreateProductInput{Fields: fields(), Images: pngs(2)})
	require.NoError(t, err)

	assert.ErrorIs(t, e.products.Delete(ctx, bob, created.ID), domain.ErrPermissionDenied)
	require.NoError(t, e.products.Delete(ctx, alice, created.ID))
	assert.Equal(t, 0, countFiles(t, e.dir))
	_, err = e.products.Retrieve(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, e.products.Delete(ctx, alice, created.ID), domain.ErrNotFound)
}

func TestListAndListMine(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")
	for i, c := range []auth.Caller{alice, bob, alice} {
		f := fields()
		f.Price = ptr(int64(100 * (i + 1)))
		_, err := e.products.Create(ctx, c, CreateProductInput{Fields: f})
		require.NoError(t, err)
	}

	all, err := e.products.List(ctx, domain.SortPriceLow)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{100, 200, 300}, []int64{all[0].Price, all[1].Price, all[2].Price})

	mine, err := e.products.ListMine(ctx, alice, domain.SortPriceHigh)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, int64(300), mine[0].Price)

	_, err = e.products.ListMine(ctx, auth.Caller{}, domain.SortLatest)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	e.register(t, "bob")
	created, err := e.products.Create(ctx, alice, CreateProductInput{Fields: fields(), Images: pngs(1)})
	require.NoError(t, err)

	require.NoError(t, e.admin.Promote(ctx, "bob"))
	assert.ErrorIs(t, e.admin.Promote(ctx, "nobody"), domain.ErrNotFound)

	page, err := e.admin.ListUsers(ctx, "bo", 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.True(t, page.Items[0].IsStaff)
	assert.True(t, page.Items[0].IsActive)

	prods, err := e.admin.ListProducts(ctx, domain.ProductFilter{Q: "alice", Category: domain.CategoryGuitar})
	require.NoError(t, err)
	assert.Equal(t, int64(1), prods.Total)

	removed := false
	e.admin.OnProductRemoved = func(context.Context) { removed = true }
	require.NoError(t, e.admin.DeleteProduct(ctx, created.ID))
	assert.True(t, removed)
	assert.Equal(t, 0, countFiles(t, e.dir))
	assert.ErrorIs(t, e.admin.DeleteProduct(ctx, created.ID), domain.ErrNotFound)
}
