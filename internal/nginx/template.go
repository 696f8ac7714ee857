package nginx

import (
	"fmt"
	"strings"
	"text/template"
)

// TemplateOptions are the panel paths a new fragment points at
type TemplateOptions struct {
	WebRoot   string
	CertDir   string
	LogDir    string
	PHPSocket string
}

// DefaultTemplateOptions matches the aaPanel layout
func DefaultTemplateOptions() TemplateOptions {
	return TemplateOptions{
		WebRoot:   "/www/wwwroot",
		CertDir:   "/www/server/panel/vhost/cert",
		LogDir:    "/www/wwwlogs",
		PHPSocket: "unix:/tmp/php-cgi-74.sock",
	}
}

var fragmentTemplate = template.Must(template.New("vhost").Parse(`server {
    listen 80;
    listen 443 ssl http2;
    server_name {{.Domain}} www.{{.Domain}};
    index index.php index.html index.htm default.php default.htm default.html;
    root {{.WebRoot}}/{{.Domain}};

    ssl_certificate    {{.CertDir}}/{{.Domain}}/fullchain.pem;
    ssl_certificate_key    {{.CertDir}}/{{.Domain}}/privkey.pem;
    ssl_protocols TLSv1.2 TLSv1.3;
    ssl_ciphers ECDHE-RSA-AES128-GCM-SHA256:ECDHE-RSA-AES256-GCM-SHA384:ECDHE-ECDSA-AES128-GCM-SHA256:ECDHE-ECDSA-AES256-GCM-SHA384;
    ssl_prefer_server_ciphers on;
    ssl_session_cache shared:SSL:10m;
    ssl_session_timeout 10m;
    add_header Strict-Transport-Security "max-age=31536000";

    if ($server_port !~ 443){
        rewrite ^(/.*)$ https://$host$1 permanent;
    }

    error_log {{.LogDir}}/{{.Domain}}.error.log;
    access_log {{.LogDir}}/{{.Domain}}.log;

    location ~ [^/]\.php(/|$) {
        try_files $uri =404;
        fastcgi_pass {{.PHPSocket}};
        fastcgi_index index.php;
        include fastcgi.conf;
        include pathinfo.conf;
    }

    location / {
        try_files $uri $uri/ /index.php?$args;
    }

    add_header X-Frame-Options SAMEORIGIN;
    add_header X-Content-Type-Options nosniff;
    add_header X-XSS-Protection "1; mode=block";

    location ~ /\. {
        deny all;
    }

    location ~ \.(log|conf)$ {
        deny all;
    }
}
`))

// RenderFragment produces the vhost for domain with HTTPS, PHP and the usual deny rules
func RenderFragment(domain string, opts TemplateOptions) (string, error) {
	if domain == "" || strings.ContainsAny(domain, " \t\n;{}") {
		return "", fmt.Errorf("invalid domain %q", domain)
	}
	var sb strings.Builder
	err := fragmentTemplate.Execute(&sb, struct {
		Domain string
		TemplateOptions
	}{domain, opts})
	if err != nil {
		return "", fmt.Errorf("render vhost for %s: %w", domain, err)
	}
	return sb.String(), nil
}
